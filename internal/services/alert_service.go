// internal/services/alert_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type AlertService struct {
	db *gorm.DB
}

type AlertInput struct {
	Type         models.AlertType
	Title        string
	Message      string
	Priority     string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      models.JSONB
}

type AlertFilter struct {
	utils.PaginationParams
	Type   *models.AlertType   `json:"type,omitempty"`
	Status *models.AlertStatus `json:"status,omitempty"`
}

func NewAlertService(db *gorm.DB) *AlertService {
	return &AlertService{db: db}
}

// Raise stores an alert unless an unread one already exists for the same type and resource.
func (s *AlertService) Raise(tx *gorm.DB, in AlertInput) (*models.Alert, bool, error) {
	var existing models.Alert
	query := tx.Where("type = ? AND status = ?", in.Type, models.AlertStatusUnread)
	if in.ResourceID != nil {
		query = query.Where("related_resource_id = ?", *in.ResourceID)
	} else {
		query = query.Where("related_resource_id IS NULL")
	}
	err := query.First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("database error: %w", err)
	}

	priority := in.Priority
	if priority == "" {
		priority = "medium"
	}
	alert := &models.Alert{
		Type:                in.Type,
		Title:               in.Title,
		Message:             in.Message,
		Priority:            priority,
		Status:              models.AlertStatusUnread,
		RelatedResourceType: in.ResourceType,
		RelatedResourceID:   in.ResourceID,
		Details:             in.Details,
	}
	if err := tx.Create(alert).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create alert: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"alert_type":  in.Type,
		"resource_id": in.ResourceID,
		"priority":    priority,
	}).Warn(in.Title)

	return alert, true, nil
}

func (s *AlertService) List(ctx context.Context, filter *AlertFilter) (*utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.Alert{})
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	var alerts []models.Alert
	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "priority", "type"})
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	result := utils.CreatePaginationResult(alerts, total, filter.PaginationParams)
	return &result, nil
}

func (s *AlertService) Acknowledge(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("alert", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if alert.Status == models.AlertStatusAcknowledged {
		return &alert, nil
	}

	now := time.Now()
	alert.Status = models.AlertStatusAcknowledged
	alert.ReadAt = &now
	if err := s.db.WithContext(ctx).Save(&alert).Error; err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return &alert, nil
}
