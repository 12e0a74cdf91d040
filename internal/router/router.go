// internal/router/router.go
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/handlers"
	"github.com/javajoker/batch-settlement/internal/middleware"
	"github.com/javajoker/batch-settlement/internal/services"
	"github.com/javajoker/batch-settlement/internal/utils"
)

// Initialize builds the HTTP engine. ctx bounds the lifetime of background helpers such as the rate limiter janitor.
func Initialize(ctx context.Context, svc *services.Services, cfg *config.Config) *gin.Engine {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Auth)
	sellerHandler := handlers.NewSellerHandler(svc.Sellers)
	batchHandler := handlers.NewBatchHandler(svc.Batches)
	saleHandler := handlers.NewSaleHandler(svc.Sales)
	settlementHandler := handlers.NewSettlementHandler(svc.Settlements, svc.Trigger)
	stockHandler := handlers.NewStockHandler(svc.Stock)
	adminHandler := handlers.NewAdminHandler(svc.Admin, svc.Costs, svc.Alerts, svc.Auth)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	generalLimiter := middleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	authLimiter := middleware.NewRateLimiter(ctx, rate.Every(time.Minute/5), 5)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language"},
		ExposeHeaders:    []string{"X-Total-Count", "X-Page", "X-Per-Page", "X-Total-Pages"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.Metrics())
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(generalLimiter.Middleware())
	r.Use(middleware.AuditLogMiddleware(svc.Admin))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authLimiter.Middleware(), authHandler.Login)
			auth.GET("/me", middleware.OperatorRequired(), authHandler.GetCurrentOperator)
		}

		operator := v1.Group("")
		operator.Use(middleware.OperatorRequired())

		// Seller directory
		sellers := operator.Group("/sellers")
		{
			sellers.GET("", sellerHandler.ListSellers)
			sellers.GET("/:id", sellerHandler.GetSeller)
			sellers.POST("", middleware.AdminRequired(), sellerHandler.RegisterSeller)
		}

		// Batch lifecycle
		batches := operator.Group("/batches")
		{
			batches.POST("", batchHandler.CreateBatch)
			batches.GET("", batchHandler.ListBatches)
			batches.GET("/:id", batchHandler.GetBatch)
			batches.POST("/:id/cancel", batchHandler.CancelBatch)
		}

		subBatches := operator.Group("/sub-batches")
		{
			subBatches.GET("/:id", batchHandler.GetSubBatch)
			subBatches.POST("/:id/release", batchHandler.ReleaseSubBatch)
			subBatches.GET("/:id/settlement-preview", settlementHandler.Preview)
		}

		// Sale intake
		sales := operator.Group("/sales")
		{
			sales.POST("", saleHandler.RegisterSale)
			sales.GET("", saleHandler.ListSales)
			sales.GET("/:id", saleHandler.GetSale)
			sales.PUT("/:id/approve", saleHandler.ApproveSale)
			sales.PUT("/:id/reject", saleHandler.RejectSale)
		}

		// Settlements
		settlements := operator.Group("/settlements")
		{
			settlements.GET("/eligible", settlementHandler.ListEligible)
			settlements.POST("/scan", middleware.AdminRequired(), settlementHandler.RunScan)
			settlements.POST("", settlementHandler.CreateSettlement)
			settlements.GET("", settlementHandler.ListSettlements)
			settlements.GET("/:id", settlementHandler.GetSettlement)
			settlements.PUT("/:id/start", settlementHandler.StartSettlement)
			settlements.PUT("/:id/confirm", settlementHandler.ConfirmSettlement)
			settlements.PUT("/:id/cancel", settlementHandler.CancelSettlement)
		}

		// Stock ledger
		stock := operator.Group("/stock")
		{
			stock.GET("", stockHandler.GetStatus)
			stock.GET("/movements", stockHandler.ListMovements)
			stock.POST("/production", stockHandler.RegisterProduction)
			stock.POST("/adjustments", middleware.AdminRequired(), stockHandler.AdjustStock)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.OperatorRequired(), middleware.AdminRequired())
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
			admin.GET("/cost-config", adminHandler.GetCostConfig)
			admin.PUT("/cost-config", adminHandler.UpdateCostConfig)
			admin.GET("/alerts", adminHandler.ListAlerts)
			admin.PUT("/alerts/:id/ack", adminHandler.AcknowledgeAlert)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
			admin.POST("/operators", adminHandler.CreateOperator)
		}
	}

	return r
}
