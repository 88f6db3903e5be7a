package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateAnalysis      = "CREATE_ANALYSIS"
	ActionDeleteAnalysis      = "DELETE_ANALYSIS"
	ActionImportTransactions  = "IMPORT_TRANSACTIONS"
	ActionCreatePhysicalNexus = "CREATE_PHYSICAL_NEXUS"
	ActionUpdatePhysicalNexus = "UPDATE_PHYSICAL_NEXUS"
	ActionDeletePhysicalNexus = "DELETE_PHYSICAL_NEXUS"
	ActionCalculateAnalysis   = "CALCULATE_ANALYSIS"
	ActionCreateThresholdRule = "CREATE_THRESHOLD_RULE"
	ActionCreateMarketplace   = "CREATE_MARKETPLACE_RULE"
	ActionCreateTaxRateRule   = "CREATE_TAX_RATE_RULE"
	ActionCreateInterestRule  = "CREATE_INTEREST_PENALTY_RULE"
	ActionCloseRule           = "CLOSE_RULE"
	ActionDeleteRule          = "DELETE_RULE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for CLI or scheduled runs
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}
