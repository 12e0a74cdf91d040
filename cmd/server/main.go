// cmd/server/main.go
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/database"
	"github.com/javajoker/batch-settlement/internal/i18n"
)

var rootCmd = &cobra.Command{
	Use:   "batch-settlement",
	Short: "Batch release and tiered settlement service",
	Long: `Tracks seller batches split into sequential sub-batches, registers sales
against them and settles collected revenue between seller and financier.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

// bootstrap loads configuration, configures logging and opens a migrated, seeded database.
func bootstrap() (*config.Config, *gorm.DB, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	configureLogging(cfg.Log)

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		return nil, nil, err
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		database.Close(db)
		return nil, nil, err
	}
	if err := database.SeedInitialData(db, cfg); err != nil {
		database.Close(db)
		return nil, nil, err
	}

	return cfg, db, nil
}

func configureLogging(cfg config.LogConfig) {
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
