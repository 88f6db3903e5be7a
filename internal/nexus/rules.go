package nexus

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// RuleKind names a rule table.
type RuleKind string

const (
	KindThreshold       RuleKind = "threshold"
	KindMarketplace     RuleKind = "marketplace"
	KindTaxRate         RuleKind = "tax_rate"
	KindInterestPenalty RuleKind = "interest_penalty"
)

// Period is a half-open effective range [EffectiveFrom, EffectiveTo).
// A nil EffectiveTo means the version is current.
type Period struct {
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
}

// Covers reports whether d falls inside the period.
func (p Period) Covers(d time.Time) bool {
	if d.Before(p.EffectiveFrom) {
		return false
	}
	return p.EffectiveTo == nil || p.EffectiveTo.After(d)
}

// Overlaps reports whether two periods share at least one instant.
func (p Period) Overlaps(o Period) bool {
	pEndsBefore := p.EffectiveTo != nil && !p.EffectiveTo.After(o.EffectiveFrom)
	oEndsBefore := o.EffectiveTo != nil && !o.EffectiveTo.After(p.EffectiveFrom)
	return !pEndsBefore && !oEndsBefore
}

func (p Period) String() string {
	to := "current"
	if p.EffectiveTo != nil {
		to = p.EffectiveTo.Format(dateLayout)
	}
	return "[" + p.EffectiveFrom.Format(dateLayout) + ", " + to + ")"
}

// Operator enum constants
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
)

// ThresholdRule is one version of a jurisdiction's economic nexus test.
type ThresholdRule struct {
	Jurisdiction         string           `json:"jurisdiction"`
	RevenueThreshold     *decimal.Decimal `json:"revenue_threshold,omitempty"`
	TransactionThreshold *int64           `json:"transaction_threshold,omitempty"`
	Operator             Operator         `json:"operator"`
	Lookback             string           `json:"lookback"`
	GracePeriodDays      int              `json:"grace_period_days"`
	Period
}

// MarketplaceRule controls how marketplace-facilitated sales are treated.
type MarketplaceRule struct {
	Jurisdiction          string `json:"jurisdiction"`
	CountsTowardThreshold bool   `json:"counts_toward_threshold"`
	ExcludedFromLiability bool   `json:"excluded_from_liability"`
	Period
}

// TaxRateRule is a blended state plus average local rate, as fractions.
type TaxRateRule struct {
	Jurisdiction string          `json:"jurisdiction"`
	StateRate    decimal.Decimal `json:"state_rate"`
	AvgLocalRate decimal.Decimal `json:"avg_local_rate"`
	Period
}

// CombinedRate is state rate plus average local rate.
func (r TaxRateRule) CombinedRate() decimal.Decimal {
	return r.StateRate.Add(r.AvgLocalRate)
}

// Compounding enum constants
type Compounding string

const (
	CompoundingSimple   Compounding = "simple"
	CompoundingMonthly  Compounding = "compound_monthly"
	CompoundingDaily    Compounding = "compound_daily"
	CompoundingAnnually Compounding = "compound_annually"
)

// PenaltyBasis enum constants
type PenaltyBasis string

const (
	PenaltyBasisTax             PenaltyBasis = "tax"
	PenaltyBasisTaxPlusInterest PenaltyBasis = "tax_plus_interest"
)

// FilingFrequency enum constants
type FilingFrequency string

const (
	FilingMonthly   FilingFrequency = "monthly"
	FilingQuarterly FilingFrequency = "quarterly"
	FilingAnnual    FilingFrequency = "annual"
)

// InterestPenaltyRule holds the interest, penalty and VDA terms.
type InterestPenaltyRule struct {
	Jurisdiction       string           `json:"jurisdiction"`
	AnnualInterestRate decimal.Decimal  `json:"annual_interest_rate"`
	Compounding        Compounding      `json:"compounding"`
	FilingFrequency    FilingFrequency  `json:"filing_frequency"`
	PenaltyRate        decimal.Decimal  `json:"penalty_rate"`
	PenaltyMin         *decimal.Decimal `json:"penalty_min,omitempty"`
	PenaltyMax         *decimal.Decimal `json:"penalty_max,omitempty"`
	PenaltyBasis       PenaltyBasis     `json:"penalty_basis"`
	VDAInterestWaived  bool             `json:"vda_interest_waived"`
	VDALookbackMonths  *int             `json:"vda_lookback_months,omitempty"`
	Period
}

// Versioned is implemented by every rule table row.
type Versioned interface {
	JurisdictionCode() string
	Window() Period
}

func (r ThresholdRule) JurisdictionCode() string       { return r.Jurisdiction }
func (r MarketplaceRule) JurisdictionCode() string     { return r.Jurisdiction }
func (r TaxRateRule) JurisdictionCode() string         { return r.Jurisdiction }
func (r InterestPenaltyRule) JurisdictionCode() string { return r.Jurisdiction }

func (r ThresholdRule) Window() Period       { return r.Period }
func (r MarketplaceRule) Window() Period     { return r.Period }
func (r TaxRateRule) Window() Period         { return r.Period }
func (r InterestPenaltyRule) Window() Period { return r.Period }

// RuleResolver indexes one rule table by jurisdiction. Versions are kept
// sorted by EffectiveFrom and validated for overlap when the resolver is
// built, so Resolve is a binary search.
type RuleResolver[T Versioned] struct {
	kind     RuleKind
	versions map[string][]T
	invalid  map[string]*InvalidTemporalOverlapError
}

// NewRuleResolver builds the index. Jurisdictions whose versions overlap are
// recorded and every lookup for them returns the overlap error.
func NewRuleResolver[T Versioned](kind RuleKind, rules []T) *RuleResolver[T] {
	r := &RuleResolver[T]{
		kind:     kind,
		versions: make(map[string][]T),
		invalid:  make(map[string]*InvalidTemporalOverlapError),
	}
	for _, rule := range rules {
		code := rule.JurisdictionCode()
		r.versions[code] = append(r.versions[code], rule)
	}
	for code, list := range r.versions {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Window().EffectiveFrom.Before(list[j].Window().EffectiveFrom)
		})
		for i := 1; i < len(list); i++ {
			prev, curr := list[i-1].Window(), list[i].Window()
			if prev.Overlaps(curr) {
				r.invalid[code] = &InvalidTemporalOverlapError{Jurisdiction: code, Kind: kind, First: prev, Second: curr}
				break
			}
		}
	}
	return r
}

// Kind returns the rule table this resolver indexes.
func (r *RuleResolver[T]) Kind() RuleKind { return r.kind }

// Validate returns the overlap error for the jurisdiction, if any.
func (r *RuleResolver[T]) Validate(jurisdiction string) error {
	if err, ok := r.invalid[jurisdiction]; ok {
		return err
	}
	return nil
}

// Resolve returns the unique version effective on onDate.
func (r *RuleResolver[T]) Resolve(jurisdiction string, onDate time.Time) (T, error) {
	var zero T
	if err := r.Validate(jurisdiction); err != nil {
		return zero, err
	}
	list := r.versions[jurisdiction]
	// first version starting after onDate; the candidate precedes it
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Window().EffectiveFrom.After(onDate)
	})
	if i > 0 && list[i-1].Window().Covers(onDate) {
		return list[i-1], nil
	}
	return zero, &RuleNotFoundError{Jurisdiction: jurisdiction, Kind: r.kind, Date: onDate}
}

// Versions returns the sorted version history for a jurisdiction.
func (r *RuleResolver[T]) Versions(jurisdiction string) []T {
	return r.versions[jurisdiction]
}

// RuleTables is the raw, fully materialized rule input for a run.
type RuleTables struct {
	Thresholds      []ThresholdRule       `json:"thresholds"`
	Marketplace     []MarketplaceRule     `json:"marketplace"`
	TaxRates        []TaxRateRule         `json:"tax_rates"`
	InterestPenalty []InterestPenaltyRule `json:"interest_penalty"`
}

// RuleSet holds one resolver per rule table.
type RuleSet struct {
	Thresholds      *RuleResolver[ThresholdRule]
	Marketplace     *RuleResolver[MarketplaceRule]
	TaxRates        *RuleResolver[TaxRateRule]
	InterestPenalty *RuleResolver[InterestPenaltyRule]
}

// NewRuleSet indexes and validates all rule tables.
func NewRuleSet(t RuleTables) *RuleSet {
	return &RuleSet{
		Thresholds:      NewRuleResolver(KindThreshold, t.Thresholds),
		Marketplace:     NewRuleResolver(KindMarketplace, t.Marketplace),
		TaxRates:        NewRuleResolver(KindTaxRate, t.TaxRates),
		InterestPenalty: NewRuleResolver(KindInterestPenalty, t.InterestPenalty),
	}
}

// Validate reports the first integrity violation for the jurisdiction
// across all rule tables.
func (s *RuleSet) Validate(jurisdiction string) error {
	for _, v := range []interface{ Validate(string) error }{
		s.Thresholds, s.Marketplace, s.TaxRates, s.InterestPenalty,
	} {
		if err := v.Validate(jurisdiction); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRules checks a single table for overlapping versions. It is used
// by write paths to reject bad rows before they are stored.
func ValidateRules[T Versioned](kind RuleKind, rules []T) error {
	r := NewRuleResolver(kind, rules)
	codes := make([]string, 0, len(r.invalid))
	for code := range r.invalid {
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil
	}
	sort.Strings(codes)
	return fmt.Errorf("invalid rule table: %w", r.invalid[codes[0]])
}
