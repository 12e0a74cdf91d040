// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/utils"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type AuthService struct {
	db  *gorm.DB
	cfg config.JWTConfig
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required"`
}

type CreateOperatorRequest struct {
	Username string              `json:"username" validate:"required,min=3,max=50"`
	Password string              `json:"password" validate:"required,min=8,max=128"`
	Role     models.OperatorRole `json:"role" validate:"required,oneof=admin operator"`
}

type AuthResponse struct {
	Operator    *models.Operator `json:"operator"`
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int              `json:"expires_in"` // in seconds
}

func NewAuthService(db *gorm.DB, cfg config.JWTConfig) *AuthService {
	return &AuthService{
		db:  db,
		cfg: cfg,
	}
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}

	var operator models.Operator
	if err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&operator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !operator.Active {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := operator.CheckPassword(req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	operator.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&operator).Update("last_login_at", now).Error; err != nil {
		logrus.WithError(err).WithField("operator_id", operator.ID).Warn("Failed to record login time")
	}

	accessToken, err := utils.GenerateJWT(operator.ID, operator.Username, string(operator.Role), s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"operator_id": operator.ID,
		"username":    operator.Username,
	}).Info("Operator logged in")

	return &AuthResponse{
		Operator:    &operator,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.cfg.AccessTokenTTL * 3600,
	}, nil
}

// CreateOperator is used by administrators and by the bootstrap seed.
func (s *AuthService) CreateOperator(ctx context.Context, req *CreateOperatorRequest) (*models.Operator, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Operator{}).Where("username = ?", req.Username).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if existing > 0 {
		return nil, &DomainError{Kind: KindValidation, Message: "username already taken"}
	}

	operator := &models.Operator{
		Username: req.Username,
		Role:     req.Role,
		Active:   true,
	}
	if err := operator.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(operator).Error; err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"operator_id": operator.ID,
		"role":        operator.Role,
	}).Info("Operator created")
	return operator, nil
}

func (s *AuthService) GetOperator(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	var operator models.Operator
	if err := s.db.WithContext(ctx).First(&operator, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("operator", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &operator, nil
}
