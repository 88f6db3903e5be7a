package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RuleWindow is the jurisdiction and half-open validity range shared by
// every rule table. A nil EffectiveTo means the version is current.
type RuleWindow struct {
	Jurisdiction  string     `gorm:"type:char(2);not null;index" json:"jurisdiction"`
	EffectiveFrom time.Time  `gorm:"type:date;not null;index" json:"effective_from"`
	EffectiveTo   *time.Time `gorm:"type:date;index" json:"effective_to"`
	Description   string     `gorm:"type:text" json:"description"`
}

// ThresholdRule stores a version of a state's economic nexus threshold.
type ThresholdRule struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RevenueThreshold     *decimal.Decimal `gorm:"type:decimal(18,2)" json:"revenue_threshold"`
	TransactionThreshold *int64           `json:"transaction_threshold"`
	Operator             string           `gorm:"type:varchar(3);not null" json:"operator"` // and, or
	Lookback             string           `gorm:"type:text;not null" json:"lookback"`       // free text, e.g. "previous or current calendar year"
	GracePeriodDays      int              `gorm:"not null;default:0" json:"grace_period_days"`
	RuleWindow
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarketplaceRule stores how marketplace-facilitated sales are treated.
type MarketplaceRule struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CountsTowardThreshold bool      `gorm:"not null" json:"counts_toward_threshold"`
	ExcludedFromLiability bool      `gorm:"not null" json:"excluded_from_liability"`
	RuleWindow
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaxRateRule stores a state rate plus average local rate, as fractions.
type TaxRateRule struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	StateRate    decimal.Decimal `gorm:"type:decimal(10,6);not null" json:"state_rate"`     // e.g. 0.0625
	AvgLocalRate decimal.Decimal `gorm:"type:decimal(10,6);not null" json:"avg_local_rate"` // population-weighted average
	RuleWindow
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InterestPenaltyRule stores interest, penalty and VDA terms.
type InterestPenaltyRule struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	AnnualInterestRate decimal.Decimal  `gorm:"type:decimal(10,6);not null" json:"annual_interest_rate"`
	Compounding        string           `gorm:"type:varchar(20);not null" json:"compounding"`
	FilingFrequency    string           `gorm:"type:varchar(10);not null;default:'annual'" json:"filing_frequency"`
	PenaltyRate        decimal.Decimal  `gorm:"type:decimal(10,6);not null" json:"penalty_rate"`
	PenaltyMin         *decimal.Decimal `gorm:"type:decimal(18,2)" json:"penalty_min"`
	PenaltyMax         *decimal.Decimal `gorm:"type:decimal(18,2)" json:"penalty_max"`
	PenaltyBasis       string           `gorm:"type:varchar(20);not null" json:"penalty_basis"`
	VDAInterestWaived  bool             `gorm:"not null" json:"vda_interest_waived"`
	VDALookbackMonths  *int             `json:"vda_lookback_months"`
	RuleWindow
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *ThresholdRule) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

func (r *MarketplaceRule) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

func (r *TaxRateRule) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

func (r *InterestPenaltyRule) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

func (r ThresholdRule) RuleID() uuid.UUID       { return r.ID }
func (r MarketplaceRule) RuleID() uuid.UUID     { return r.ID }
func (r TaxRateRule) RuleID() uuid.UUID         { return r.ID }
func (r InterestPenaltyRule) RuleID() uuid.UUID { return r.ID }

func (r ThresholdRule) Window() RuleWindow       { return r.RuleWindow }
func (r MarketplaceRule) Window() RuleWindow     { return r.RuleWindow }
func (r TaxRateRule) Window() RuleWindow         { return r.RuleWindow }
func (r InterestPenaltyRule) Window() RuleWindow { return r.RuleWindow }
