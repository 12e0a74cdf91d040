// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/batch-settlement/internal/metrics"
	"github.com/javajoker/batch-settlement/internal/services"
)

// AuditLogMiddleware persists one audit row per mutating request.
func AuditLogMiddleware(admin *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip reads and health checks
		if c.Request.Method == http.MethodGet || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		// Read request body
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		operatorID, _ := c.Get("operator_id")
		var operatorUUID *uuid.UUID
		if id, ok := operatorID.(string); ok {
			if parsed, err := uuid.Parse(id); err == nil {
				operatorUUID = &parsed
			}
		}

		var requestData map[string]interface{}
		if len(requestBody) > 0 {
			if err := json.Unmarshal(requestBody, &requestData); err != nil {
				requestData = nil
			}
		}
		// never persist credentials
		delete(requestData, "password")

		entry := services.AuditEntry{
			OperatorID:   operatorUUID,
			Action:       c.Request.Method + " " + c.Request.URL.Path,
			ResourceType: extractResourceType(c.Request.URL.Path),
			NewValues:    requestData,
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			StatusCode:   c.Writer.Status(),
		}
		if resourceID := extractResourceID(c.Request.URL.Path); resourceID != "" {
			if parsed, err := uuid.Parse(resourceID); err == nil {
				entry.ResourceID = &parsed
			}
		}

		// Save audit log asynchronously
		go func() {
			if err := admin.RecordAudit(context.Background(), entry); err != nil {
				logrus.WithError(err).Error("Failed to create audit log")
			}
		}()

		logrus.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration":    duration.Milliseconds(),
			"ip":          c.ClientIP(),
			"operator_id": operatorID,
		}).Info("Request processed")
	}
}

// Metrics records request counts and latency by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func extractResourceType(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "v1" {
		if parts[1] == "admin" && len(parts) >= 3 {
			return parts[2]
		}
		return parts[1]
	}
	if len(parts) >= 1 {
		return parts[0]
	}
	return "unknown"
}

func extractResourceID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, part := range parts {
		if _, err := uuid.Parse(part); err == nil {
			return part
		}
	}
	return ""
}
