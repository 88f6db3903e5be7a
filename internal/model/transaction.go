package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesTransaction is one normalized sale attached to an analysis.
type SalesTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	AnalysisID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_txn_analysis_state" json:"analysis_id"`
	Jurisdiction    string          `gorm:"type:char(2);not null;index:idx_txn_analysis_state" json:"jurisdiction"`
	TransactionDate time.Time       `gorm:"type:date;not null" json:"transaction_date"`
	GrossAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"gross_amount"`
	ExemptAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"exempt_amount"`
	Channel         string          `gorm:"type:varchar(20);not null" json:"channel"` // direct, marketplace, other
	ExternalID      string          `gorm:"type:varchar(100)" json:"external_id,omitempty"`
	Aggregated      bool            `gorm:"not null;default:false" json:"aggregated"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (t *SalesTransaction) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}
