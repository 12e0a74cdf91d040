// Package testutil builds configuration and in-memory databases for package tests.
package testutil

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/database"
)

const (
	AdminUsername = "admin"
	AdminPassword = "admin-password"
)

// Config mirrors the production defaults with a sqlite in-memory database.
func Config() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Port:         "0",
			AllowOrigins: []string{"http://localhost:3000"},
		},
		Database: config.DatabaseConfig{
			Driver:   "sqlite",
			Path:     ":memory:",
			LogLevel: "silent",
		},
		JWT: config.JWTConfig{
			SecretKey:      "test-secret",
			AccessTokenTTL: 1,
		},
		Log: config.LogConfig{Level: "error", Format: "text"},
		Settlement: config.SettlementConfig{
			DefaultSubBatchCount:    3,
			SplitTwo:                []int{50, 50},
			SplitThree:              []int{40, 30, 30},
			TriggerPct:              20,
			TriggerPctSecondOfThree: 10,
			DirectSplitSellerPct:    60,
			CascadeSplitSellerPct:   50,
			RecruiterMaxDepth:       10,
			ScanInterval:            time.Minute,
			AutoCreate:              true,
			MaxRetries:              3,
			RewardsContributionPct:  5,
		},
		Pricing: config.PricingConfig{
			RealCostRatio:            0.5,
			FinancierInvestmentShare: 0.5,
			StandardUnitPrice:        2400,
			PromoPairPrice:           4000,
			NoExtraUnitPrice:         2000,
			GiftQuotaPct:             8,
		},
		Kafka: config.KafkaConfig{
			SummaryTopic:    "settlement.summaries",
			RewardsTopic:    "rewards.contributions",
			SettlementTopic: "settlement.events",
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Bootstrap: config.BootstrapConfig{
			AdminUsername:  AdminUsername,
			AdminPassword:  AdminPassword,
			RootSellerName: "Organizer",
		},
		I18n: config.I18nConfig{DefaultLocale: "en"},
	}
}

// NewDB opens a migrated and seeded in-memory database that is closed with the test.
func NewDB(t testing.TB, cfg *config.Config) *gorm.DB {
	t.Helper()
	logrus.SetOutput(io.Discard)

	db, err := database.Initialize(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.RunMigrations(db))
	require.NoError(t, database.SeedInitialData(db, cfg))
	return db
}
