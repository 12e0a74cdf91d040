// internal/services/services.go
package services

import (
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/events"
)

// Services is the process-wide set of service instances, built once at startup.
type Services struct {
	Alerts        *AlertService
	Costs         *CostConfigService
	Stock         *StockService
	Sellers       *SellerDirectory
	Batches       *BatchService
	Sales         *SaleService
	Settlements   *SettlementService
	Trigger       *TriggerService
	Notifications *NotificationService
	Auth          *AuthService
	Admin         *AdminService
}

func NewServices(db *gorm.DB, cfg *config.Config, publisher events.Publisher) *Services {
	alerts := NewAlertService(db)
	costs := NewCostConfigService(db)
	stock := NewStockService(db, alerts)
	sellers := NewSellerDirectory(db)
	batches := NewBatchService(db, cfg.Settlement, stock, costs, sellers)
	sales := NewSaleService(db, cfg.Settlement, stock, costs)
	notifications := NewNotificationService(publisher, cfg.Kafka, cfg.I18n.DefaultLocale)
	settlements := NewSettlementService(db, cfg.Settlement, batches, alerts, notifications)
	trigger := NewTriggerService(db, cfg.Settlement, settlements, stock, alerts)
	sales.SetChecker(trigger)

	return &Services{
		Alerts:        alerts,
		Costs:         costs,
		Stock:         stock,
		Sellers:       sellers,
		Batches:       batches,
		Sales:         sales,
		Settlements:   settlements,
		Trigger:       trigger,
		Notifications: notifications,
		Auth:          NewAuthService(db, cfg.JWT),
		Admin:         NewAdminService(db, stock),
	}
}
