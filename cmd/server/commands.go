// cmd/server/commands.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javajoker/batch-settlement/internal/database"
	"github.com/javajoker/batch-settlement/internal/events"
	"github.com/javajoker/batch-settlement/internal/router"
	"github.com/javajoker/batch-settlement/internal/services"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(scanCmd)

	serveCmd.Flags().Bool("no-scanner", false, "Do not start the background settlement scanner")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background settlement scanner",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and seed the singleton rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer database.Close(db)

		logrus.Info("Migrations applied")
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one settlement detection pass and print the report",
	Long:  `Runs the trigger detector once. Intended for external cron wrappers.`,
	RunE:  runScan,
}

func runServe(cmd *cobra.Command, args []string) error {
	noScanner, _ := cmd.Flags().GetBool("no-scanner")

	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer database.Close(db)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	publisher := events.New(cfg.Kafka, logrus.StandardLogger())
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := services.NewServices(db, cfg, publisher)
	r := router.Initialize(ctx, svc, cfg)

	if !noScanner {
		go svc.Trigger.Start(ctx)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrus.Info("Server exited")
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer database.Close(db)

	publisher := events.New(cfg.Kafka, logrus.StandardLogger())
	defer publisher.Close()

	svc := services.NewServices(db, cfg, publisher)
	report, err := svc.Trigger.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
