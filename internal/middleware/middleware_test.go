// internal/middleware/middleware_test.go
package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/javajoker/batch-settlement/internal/utils"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"lang": utils.GetLangFromContext(c),
			"role": c.GetString("role"),
		})
	})
	return r
}

func probe(r *gin.Engine, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestI18nMiddleware(t *testing.T) {
	r := newEngine(I18nMiddleware("en"))

	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"es-MX,es;q=0.9,en;q=0.8", "es"},
		{"es_ES", "es"},
		{"fr-FR", "en"},
	}
	for _, tt := range tests {
		w := probe(r, map[string]string{"Accept-Language": tt.header})
		assert.Contains(t, w.Body.String(), `"lang":"`+tt.want+`"`, tt.header)
	}
}

func TestOperatorRequired(t *testing.T) {
	utils.SetJWTSecret("middleware-secret")
	r := newEngine(OperatorRequired())

	assert.Equal(t, http.StatusUnauthorized, probe(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, probe(r, map[string]string{"Authorization": "Token abc"}).Code)
	assert.Equal(t, http.StatusUnauthorized, probe(r, map[string]string{"Authorization": "Bearer abc"}).Code)

	token, err := utils.GenerateJWT(uuid.New(), "clerk", "operator", 1)
	require.NoError(t, err)
	w := probe(r, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"operator"`)
}

func TestAdminRequired(t *testing.T) {
	utils.SetJWTSecret("middleware-secret")
	r := newEngine(OperatorRequired(), AdminRequired())

	operator, err := utils.GenerateJWT(uuid.New(), "clerk", "operator", 1)
	require.NoError(t, err)
	admin, err := utils.GenerateJWT(uuid.New(), "root", "admin", 1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, probe(r, map[string]string{"Authorization": "Bearer " + operator}).Code)
	assert.Equal(t, http.StatusOK, probe(r, map[string]string{"Authorization": "Bearer " + admin}).Code)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := NewRateLimiter(ctx, rate.Limit(0.001), 2)
	r := newEngine(limiter.Middleware())

	assert.Equal(t, http.StatusOK, probe(r, nil).Code)
	assert.Equal(t, http.StatusOK, probe(r, nil).Code)
	w := probe(r, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestExtractResource(t *testing.T) {
	id := uuid.New()

	assert.Equal(t, "settlements", extractResourceType("/v1/settlements/"+id.String()+"/confirm"))
	assert.Equal(t, "cost-config", extractResourceType("/v1/admin/cost-config"))
	assert.Equal(t, "health", extractResourceType("/health"))

	assert.Equal(t, id.String(), extractResourceID("/v1/sales/"+id.String()+"/approve"))
	assert.Empty(t, extractResourceID("/v1/stock/production"))
}
