// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	if cfg.Driver == "sqlite" {
		// a single writer keeps sqlite from returning SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("driver", cfg.Driver).Info("Database connection established")
	return db, nil
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

// Models lists every persisted model in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.Seller{},
		&models.Operator{},
		&models.Batch{},
		&models.SubBatch{},
		&models.Sale{},
		&models.Settlement{},
		&models.StockLedger{},
		&models.StockMovement{},
		&models.CostConfig{},
		&models.Alert{},
		&models.AuditLog{},
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
			return fmt.Errorf("failed to create UUID extension: %w", err)
		}
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Batch indexes
		"CREATE INDEX IF NOT EXISTS idx_batches_seller_state ON batches(seller_id, state)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_sub_batches_batch_sequence ON sub_batches(batch_id, sequence)",
		"CREATE INDEX IF NOT EXISTS idx_sub_batches_state ON sub_batches(state, batch_id)",

		// Sale indexes
		"CREATE INDEX IF NOT EXISTS idx_sales_sub_batch_status ON sales(sub_batch_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_sales_sub_batch_type ON sales(sub_batch_id, type)",

		// Settlement indexes
		"CREATE INDEX IF NOT EXISTS idx_settlements_sub_batch_status ON settlements(sub_batch_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_settlements_batch_sequence ON settlements(batch_id, sequence)",

		// Stock indexes
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_created ON stock_movements(created_at DESC)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_alerts_type_resource ON alerts(type, related_resource_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			// Continue with other indexes instead of failing completely
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}

	return nil
}

// SeedInitialData creates the singleton rows, the root financier and the first operator.
func SeedInitialData(db *gorm.DB, cfg *config.Config) error {
	logrus.Info("Seeding initial data...")

	ledger := models.StockLedger{ID: models.StockLedgerID, UnitCost: decimal.Zero}
	if err := db.Where(models.StockLedger{ID: models.StockLedgerID}).FirstOrCreate(&ledger).Error; err != nil {
		return fmt.Errorf("failed to seed stock ledger: %w", err)
	}

	costConfig := models.CostConfig{
		ID:                       models.CostConfigID,
		RealCostRatio:            decimal.NewFromFloat(cfg.Pricing.RealCostRatio),
		FinancierInvestmentShare: decimal.NewFromFloat(cfg.Pricing.FinancierInvestmentShare),
		StandardUnitPrice:        decimal.NewFromFloat(cfg.Pricing.StandardUnitPrice),
		PromoPairPrice:           decimal.NewFromFloat(cfg.Pricing.PromoPairPrice),
		NoExtraUnitPrice:         decimal.NewFromFloat(cfg.Pricing.NoExtraUnitPrice),
		GiftQuotaPct:             decimal.NewFromFloat(cfg.Pricing.GiftQuotaPct),
	}
	if err := db.Where(models.CostConfig{ID: models.CostConfigID}).FirstOrCreate(&costConfig).Error; err != nil {
		return fmt.Errorf("failed to seed cost config: %w", err)
	}

	var rootCount int64
	db.Model(&models.Seller{}).Where("is_root = ?", true).Count(&rootCount)
	if rootCount == 0 {
		root := &models.Seller{
			Name:   cfg.Bootstrap.RootSellerName,
			Tier:   models.SellerTierOrganizer,
			IsRoot: true,
			Active: true,
		}
		if cfg.Settlement.RootSellerID != "" {
			if err := root.ID.UnmarshalText([]byte(cfg.Settlement.RootSellerID)); err != nil {
				return fmt.Errorf("invalid root seller id: %w", err)
			}
		}
		if err := db.Create(root).Error; err != nil {
			return fmt.Errorf("failed to create root seller: %w", err)
		}
		logrus.WithField("seller_id", root.ID).Info("Root financier created")
	}

	var operatorCount int64
	db.Model(&models.Operator{}).Where("role = ?", models.OperatorRoleAdmin).Count(&operatorCount)
	if operatorCount == 0 {
		admin := &models.Operator{
			Username: cfg.Bootstrap.AdminUsername,
			Role:     models.OperatorRoleAdmin,
			Active:   true,
		}
		if err := admin.SetPassword(cfg.Bootstrap.AdminPassword); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}
		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin operator: %w", err)
		}
		logrus.Info("Default admin operator created")
	}

	logrus.Info("Initial data seeding completed")
	return nil
}
