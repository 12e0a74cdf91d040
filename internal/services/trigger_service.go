// internal/services/trigger_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/metrics"
	"github.com/javajoker/batch-settlement/internal/models"
)

// TriggerService detects sub-batches that reached their settlement trigger.
// It runs on a ticker and synchronously after each sale approval.
type TriggerService struct {
	db          *gorm.DB
	cfg         config.SettlementConfig
	rules       eligibilityRules
	settlements *SettlementService
	stock       *StockService
	alerts      *AlertService

	// one scan at a time per process; cross-process safety comes from the
	// existence check and version bump inside createSettlement
	scanMu sync.Mutex
}

type EligibleSubBatch struct {
	models.SubBatch
	Eligibility *EligibilityResult `json:"eligibility"`
}

type ScanReport struct {
	StartedAt  time.Time           `json:"started_at"`
	Duration   string              `json:"duration"`
	Scanned    int                 `json:"scanned"`
	Eligible   int                 `json:"eligible"`
	Created    []uuid.UUID         `json:"created"`
	Advisories int                 `json:"advisories"`
	Skipped    int                 `json:"skipped"`
	Failures   map[string]string   `json:"failures,omitempty"`
	Stock      *StockStatus        `json:"stock,omitempty"`
	Results    []EligibilityResult `json:"results"`
}

func NewTriggerService(db *gorm.DB, cfg config.SettlementConfig, settlements *SettlementService, stock *StockService, alerts *AlertService) *TriggerService {
	return &TriggerService{
		db:          db,
		cfg:         cfg,
		rules:       eligibilityRules{cfg: cfg},
		settlements: settlements,
		stock:       stock,
		alerts:      alerts,
	}
}

// candidates returns released sub-batches of active batches, oldest batch first.
func (s *TriggerService) candidates(ctx context.Context) ([]models.SubBatch, error) {
	var subs []models.SubBatch
	err := s.db.WithContext(ctx).
		Joins("JOIN batches ON batches.id = sub_batches.batch_id AND batches.deleted_at IS NULL").
		Where("batches.state = ? AND sub_batches.state = ?", models.BatchStateActive, models.SubBatchStateReleased).
		Order("batches.created_at, sub_batches.sequence").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load released sub-batches: %w", err)
	}
	return subs, nil
}

func (s *TriggerService) evaluate(ctx context.Context, subBatchID uuid.UUID) (*models.SubBatch, *EligibilityResult, error) {
	db := s.db.WithContext(ctx)
	sub, batch, err := loadSubBatchWithBatch(db, subBatchID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.rules.Evaluate(db, sub, batch)
	if err != nil {
		return nil, nil, err
	}
	return sub, result, nil
}

// ListEligible reports every released sub-batch that currently meets its trigger.
func (s *TriggerService) ListEligible(ctx context.Context) ([]EligibleSubBatch, error) {
	subs, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]EligibleSubBatch, 0)
	for _, candidate := range subs {
		sub, result, err := s.evaluate(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if result.Eligible {
			eligible = append(eligible, EligibleSubBatch{SubBatch: *sub, Eligibility: result})
		}
	}
	return eligible, nil
}

// CheckSubBatch evaluates one sub-batch and acts on the outcome: an eligible
// sub-batch gets a settlement when auto-create is on, a short first sub-batch
// gets an advisory alert.
func (s *TriggerService) CheckSubBatch(ctx context.Context, subBatchID uuid.UUID) (*EligibilityResult, error) {
	sub, result, err := s.evaluate(ctx, subBatchID)
	if err != nil {
		return nil, err
	}

	switch {
	case result.Eligible && s.cfg.AutoCreate:
		settlement, err := s.settlements.createSettlement(ctx, sub.ID, false, OriginTrigger)
		if err != nil {
			// another tick or an operator got there first
			if errors.Is(err, ErrInvalidStateTransition) {
				result.Skipped = true
				result.Reason = err.Error()
				return result, nil
			}
			return nil, err
		}
		result.SettlementID = &settlement.ID

	case result.Advisory:
		_, created, err := s.alerts.Raise(s.db.WithContext(ctx), AlertInput{
			Type:         models.AlertTypeRevenueShort,
			Title:        "Stock running low before investment is covered",
			Message:      result.Reason,
			ResourceType: "sub_batch",
			ResourceID:   &sub.ID,
			Details: models.JSONB{
				"batch_id":        result.BatchID.String(),
				"revenue":         result.Revenue.String(),
				"threshold":       result.Threshold.String(),
				"remaining_ratio": result.RemainingRatio.StringFixed(4),
			},
		})
		if err != nil {
			return nil, err
		}
		if created {
			logrus.WithFields(logrus.Fields{
				"sub_batch_id": sub.ID,
				"revenue":      result.Revenue.String(),
				"threshold":    result.Threshold.String(),
			}).Warn("Revenue short on low-stock sub-batch")
		}
	}

	return result, nil
}

// RunOnce performs one detection pass over all released sub-batches and a stock deficit check.
func (s *TriggerService) RunOnce(ctx context.Context) (*ScanReport, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	report := &ScanReport{
		StartedAt: time.Now(),
		Created:   make([]uuid.UUID, 0),
		Results:   make([]EligibilityResult, 0),
	}

	subs, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report.Scanned++
		result, err := s.CheckSubBatch(ctx, sub.ID)
		if err != nil {
			if report.Failures == nil {
				report.Failures = make(map[string]string)
			}
			report.Failures[sub.ID.String()] = err.Error()
			logrus.WithError(err).WithField("sub_batch_id", sub.ID).Error("Settlement check failed")
			continue
		}

		if result.Eligible {
			report.Eligible++
		}
		if result.SettlementID != nil {
			report.Created = append(report.Created, *result.SettlementID)
		}
		if result.Advisory {
			report.Advisories++
		}
		if result.Skipped {
			report.Skipped++
		}
		report.Results = append(report.Results, *result)
	}

	stock, err := s.stock.CheckDeficit(ctx)
	if err != nil {
		logrus.WithError(err).Error("Stock deficit check failed")
	} else {
		report.Stock = stock
	}

	metrics.ObserveScan(report.StartedAt, report.Eligible)
	report.Duration = time.Since(report.StartedAt).String()

	logrus.WithFields(logrus.Fields{
		"scanned":    report.Scanned,
		"eligible":   report.Eligible,
		"created":    len(report.Created),
		"advisories": report.Advisories,
		"failures":   len(report.Failures),
		"duration":   report.Duration,
	}).Info("Settlement scan finished")

	return report, nil
}

// Start runs RunOnce every ScanInterval until ctx is cancelled.
func (s *TriggerService) Start(ctx context.Context) {
	interval := s.cfg.ScanInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.WithField("interval", interval.String()).Info("Settlement scanner started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Settlement scanner stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logrus.WithError(err).Error("Settlement scan failed")
			}
		}
	}
}
