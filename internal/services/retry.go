// internal/services/retry.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/metrics"
)

// updateVersioned applies updates only if the row still carries version and bumps it.
func updateVersioned(tx *gorm.DB, model interface{}, id uuid.UUID, version int, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")
	res := tx.Model(model).Where("id = ? AND version = ?", id, version).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("database error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// withRetry reruns fn while it fails with a version conflict.
func withRetry(ctx context.Context, operation string, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrConcurrentUpdate) {
			return err
		}

		metrics.ConcurrentRetries.WithLabelValues(operation).Inc()
		logrus.WithFields(logrus.Fields{
			"operation": operation,
			"attempt":   attempt,
		}).Warn("Version conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*10) * time.Millisecond):
		}
	}
	return err
}
