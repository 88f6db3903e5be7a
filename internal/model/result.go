package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StateYearResult is a persisted engine result. Rows are replaced as a set
// on every calculation of an analysis.
type StateYearResult struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	AnalysisID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_result_analysis_state_year" json:"analysis_id"`
	Jurisdiction     string              `gorm:"type:char(2);not null;uniqueIndex:idx_result_analysis_state_year" json:"jurisdiction"`
	Year             int                 `gorm:"not null;uniqueIndex:idx_result_analysis_state_year" json:"year"`
	Status           string              `gorm:"type:varchar(20);not null;index" json:"status"`
	FirstNexusYear   *int                `json:"first_nexus_year"`
	NexusDate        *time.Time          `gorm:"type:date" json:"nexus_date"`
	ObligationStart  *time.Time          `gorm:"type:date" json:"obligation_start"`
	ThresholdPercent decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"threshold_percent"`

	GrossSales       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"gross_sales"`
	TaxableSales     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"taxable_sales"`
	ExemptSales      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"exempt_sales"`
	MarketplaceSales decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"marketplace_sales"`
	DirectSales      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"direct_sales"`
	TransactionCount *int64          `json:"transaction_count"`

	LiableSales    decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"liable_sales"`
	CombinedRate   decimal.NullDecimal `gorm:"type:decimal(10,6)" json:"combined_rate"`
	EstimatedTax   decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"estimated_tax"`
	Interest       decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"interest"`
	Penalties      decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"penalties"`
	TotalLiability decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"total_liability"`

	LookbackAssumptionApplied bool      `gorm:"not null" json:"lookback_assumption_applied"`
	NeedsManualReview         bool      `gorm:"not null;index" json:"needs_manual_review"`
	Issues                    string    `gorm:"type:jsonb" json:"issues"` // serialized reason codes and messages
	CreatedAt                 time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *StateYearResult) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}
