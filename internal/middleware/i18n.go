// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	if defaultLang == "" {
		defaultLang = "en"
	}
	return func(c *gin.Context) {
		lang := defaultLang

		// Handle headers like "es-MX,es;q=0.9,en;q=0.8"
		if header := c.GetHeader("Accept-Language"); header != "" {
			first := strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0])
			switch strings.ToLower(strings.SplitN(strings.ReplaceAll(first, "_", "-"), "-", 2)[0]) {
			case "es":
				lang = "es"
			case "en":
				lang = "en"
			}
		}

		c.Set("lang", lang)
		c.Next()
	}
}
