package nexus

import (
	"time"

	"github.com/shopspring/decimal"
)

// Channel enum constants
type Channel string

const (
	ChannelDirect      Channel = "direct"
	ChannelMarketplace Channel = "marketplace"
	ChannelOther       Channel = "other"
)

// Transaction is one normalized sale. Aggregated rows carry a pre-summed
// amount whose underlying sale count is unknown.
type Transaction struct {
	Jurisdiction string          `json:"jurisdiction"`
	Date         time.Time       `json:"date"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	ExemptAmount decimal.Decimal `json:"exempt_amount"`
	Channel      Channel         `json:"channel"`
	ExternalID   string          `json:"external_id,omitempty"`
	Aggregated   bool            `json:"aggregated,omitempty"`
}

// Taxable is gross minus exempt. It may be negative for refund corrections.
func (t Transaction) Taxable() decimal.Decimal {
	return t.GrossAmount.Sub(t.ExemptAmount)
}

// PhysicalNexusFact is a user-asserted period of physical presence.
type PhysicalNexusFact struct {
	Jurisdiction string     `json:"jurisdiction"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// activeIn reports whether the presence overlaps the calendar year.
func (f PhysicalNexusFact) activeIn(year int) bool {
	if f.StartDate.After(yearEnd(year)) {
		return false
	}
	return f.EndDate == nil || !f.EndDate.Before(yearStart(year))
}

// Status enum constants
type Status string

const (
	StatusNone          Status = "none"
	StatusApproaching   Status = "approaching"
	StatusEconomic      Status = "economic"
	StatusPhysical      Status = "physical"
	StatusBoth          Status = "both"
	StatusIndeterminate Status = "indeterminate"
)

// HasNexus reports whether the status carries a collection obligation.
func (s Status) HasNexus() bool {
	return s == StatusEconomic || s == StatusPhysical || s == StatusBoth
}

// Reason codes attached to results that need manual review or carry a caveat.
const (
	ReasonRuleNotFound           = "rule_not_found"
	ReasonIndeterminateThreshold = "indeterminate_threshold"
	ReasonAmbiguousLookback      = "ambiguous_lookback"
	ReasonInvalidTemporalOverlap = "invalid_temporal_overlap"
)

// Issue is a reason code plus a human readable message.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateYearResult is the engine output for one jurisdiction and calendar year.
type StateYearResult struct {
	Jurisdiction     string           `json:"jurisdiction"`
	Year             int              `json:"year"`
	Status           Status           `json:"status"`
	FirstNexusYear   *int             `json:"first_nexus_year"`
	NexusDate        *time.Time       `json:"nexus_date"`
	ObligationStart  *time.Time       `json:"obligation_start"`
	ThresholdPercent *decimal.Decimal `json:"threshold_percent"`

	GrossSales       decimal.Decimal `json:"gross_sales"`
	TaxableSales     decimal.Decimal `json:"taxable_sales"`
	ExemptSales      decimal.Decimal `json:"exempt_sales"`
	MarketplaceSales decimal.Decimal `json:"marketplace_sales"`
	DirectSales      decimal.Decimal `json:"direct_sales"`
	TransactionCount *int64          `json:"transaction_count"`

	LiableSales    decimal.NullDecimal `json:"liable_sales"`
	CombinedRate   decimal.NullDecimal `json:"combined_rate"`
	EstimatedTax   decimal.NullDecimal `json:"estimated_tax"`
	Interest       decimal.NullDecimal `json:"interest"`
	Penalties      decimal.NullDecimal `json:"penalties"`
	TotalLiability decimal.NullDecimal `json:"total_liability"`

	LookbackAssumptionApplied bool    `json:"lookback_assumption_applied"`
	NeedsManualReview         bool    `json:"needs_manual_review"`
	Issues                    []Issue `json:"issues,omitempty"`
}

func (r *StateYearResult) flag(code string, err error) {
	r.NeedsManualReview = true
	r.addIssue(code, err)
}

func (r *StateYearResult) addIssue(code string, err error) {
	r.Issues = append(r.Issues, Issue{Code: code, Message: err.Error()})
}

// Summary aggregates an analysis run.
type Summary struct {
	TotalLiability         decimal.Decimal `json:"total_liability"`
	TotalTax               decimal.Decimal `json:"total_tax"`
	TotalInterest          decimal.Decimal `json:"total_interest"`
	TotalPenalties         decimal.Decimal `json:"total_penalties"`
	JurisdictionsWithNexus int             `json:"jurisdictions_with_nexus"`
	JurisdictionsFlagged   int             `json:"jurisdictions_flagged"`
	ResultsNeedingReview   int             `json:"results_needing_review"`
}

// Summarize aggregates results. Null liabilities are not counted toward
// totals; they are reflected in ResultsNeedingReview instead.
func Summarize(results []StateYearResult) Summary {
	s := Summary{
		TotalLiability: decimal.Zero,
		TotalTax:       decimal.Zero,
		TotalInterest:  decimal.Zero,
		TotalPenalties: decimal.Zero,
	}
	withNexus := map[string]bool{}
	flagged := map[string]bool{}
	for _, r := range results {
		if r.Status.HasNexus() {
			withNexus[r.Jurisdiction] = true
		}
		if r.NeedsManualReview {
			flagged[r.Jurisdiction] = true
			s.ResultsNeedingReview++
		}
		if r.TotalLiability.Valid {
			s.TotalLiability = s.TotalLiability.Add(r.TotalLiability.Decimal)
			s.TotalTax = s.TotalTax.Add(r.EstimatedTax.Decimal)
			s.TotalInterest = s.TotalInterest.Add(r.Interest.Decimal)
			s.TotalPenalties = s.TotalPenalties.Add(r.Penalties.Decimal)
		}
	}
	s.JurisdictionsWithNexus = len(withNexus)
	s.JurisdictionsFlagged = len(flagged)
	return s
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func yearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// day truncates t to its UTC calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
