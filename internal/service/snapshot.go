package service

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"taxnexus/internal/model"
	"taxnexus/internal/nexus"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// TransactionInput is one normalized sale as handed over by the ingestion
// side: jurisdiction already mapped to a 2-letter code, date already parsed.
type TransactionInput struct {
	Jurisdiction string `json:"jurisdiction" binding:"required,len=2"`
	Date         string `json:"date" binding:"required"`         // YYYY-MM-DD
	GrossAmount  string `json:"gross_amount" binding:"required"` // Decimal string
	ExemptAmount string `json:"exempt_amount"`                   // Decimal string, default 0
	Channel      string `json:"channel" binding:"required,oneof=direct marketplace other"`
	ExternalID   string `json:"external_id"`
	Aggregated   bool   `json:"aggregated"` // pre-summed row, sale count unknown
}

type PhysicalNexusInput struct {
	Jurisdiction string `json:"jurisdiction" binding:"required,len=2"`
	StartDate    string `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate      string `json:"end_date"`                      // YYYY-MM-DD, empty = ongoing
	Reason       string `json:"reason"`
}

// SnapshotFile is the on-disk form of an engine run: the same shapes the
// API accepts, bundled with the rule tables.
type SnapshotFile struct {
	AsOf          string               `json:"as_of"`
	Transactions  []TransactionInput   `json:"transactions"`
	PhysicalFacts []PhysicalNexusInput `json:"physical_facts"`
	Rules         RuleFile             `json:"rules"`
}

type RuleFile struct {
	Thresholds      []ThresholdRuleRequest       `json:"thresholds"`
	Marketplace     []MarketplaceRuleRequest     `json:"marketplace"`
	TaxRates        []TaxRateRuleRequest         `json:"tax_rates"`
	InterestPenalty []InterestPenaltyRuleRequest `json:"interest_penalty"`
}

// DecodeSnapshot reads a SnapshotFile and converts it to engine input.
func DecodeSnapshot(r io.Reader) (nexus.Snapshot, error) {
	var f SnapshotFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nexus.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return f.Snapshot()
}

// Snapshot validates every row and builds the engine input.
func (f SnapshotFile) Snapshot() (nexus.Snapshot, error) {
	asOf, err := parseDate("as_of", f.AsOf)
	if err != nil {
		return nexus.Snapshot{}, err
	}
	snap := nexus.Snapshot{AsOf: asOf}

	for i, in := range f.Transactions {
		m, err := in.toModel(uuid.Nil)
		if err != nil {
			return nexus.Snapshot{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		snap.Transactions = append(snap.Transactions, transactionFromModel(m))
	}
	for i, in := range f.PhysicalFacts {
		m, err := in.toModel(uuid.Nil)
		if err != nil {
			return nexus.Snapshot{}, fmt.Errorf("physical fact %d: %w", i, err)
		}
		snap.PhysicalFacts = append(snap.PhysicalFacts, physicalFactFromModel(m))
	}

	for i, req := range f.Rules.Thresholds {
		m, err := req.toModel()
		if err != nil {
			return nexus.Snapshot{}, fmt.Errorf("threshold rule %d: %w", i, err)
		}
		snap.Rules.Thresholds = append(snap.Rules.Thresholds, thresholdFromModel(m))
	}
	for i, req := range f.Rules.Marketplace {
		m, err := req.toModel()
		if err != nil {
			return nexus.Snapshot{}, fmt.Errorf("marketplace rule %d: %w", i, err)
		}
		snap.Rules.Marketplace = append(snap.Rules.Marketplace, marketplaceFromModel(m))
	}
	for i, req := range f.Rules.TaxRates {
		m, err := req.toModel()
		if err != nil {
			return nexus.Snapshot{}, fmt.Errorf("tax rate rule %d: %w", i, err)
		}
		snap.Rules.TaxRates = append(snap.Rules.TaxRates, taxRateFromModel(m))
	}
	for i, req := range f.Rules.InterestPenalty {
		m, err := req.toModel()
		if err != nil {
			return nexus.Snapshot{}, fmt.Errorf("interest/penalty rule %d: %w", i, err)
		}
		snap.Rules.InterestPenalty = append(snap.Rules.InterestPenalty, interestPenaltyFromModel(m))
	}
	return snap, nil
}

// --- Input parsing ---

func (in TransactionInput) toModel(analysisID uuid.UUID) (model.SalesTransaction, error) {
	code, err := parseJurisdiction(in.Jurisdiction)
	if err != nil {
		return model.SalesTransaction{}, err
	}
	date, err := parseDate("date", in.Date)
	if err != nil {
		return model.SalesTransaction{}, err
	}
	gross, err := parseDecimal("gross_amount", in.GrossAmount)
	if err != nil {
		return model.SalesTransaction{}, err
	}
	exempt := decimal.Zero
	if in.ExemptAmount != "" {
		if exempt, err = parseDecimal("exempt_amount", in.ExemptAmount); err != nil {
			return model.SalesTransaction{}, err
		}
	}
	if exempt.IsNegative() {
		return model.SalesTransaction{}, invalidf("exempt_amount must not be negative")
	}
	switch nexus.Channel(in.Channel) {
	case nexus.ChannelDirect, nexus.ChannelMarketplace, nexus.ChannelOther:
	default:
		return model.SalesTransaction{}, invalidf("unknown channel %q", in.Channel)
	}

	return model.SalesTransaction{
		AnalysisID:      analysisID,
		Jurisdiction:    code,
		TransactionDate: date,
		GrossAmount:     gross,
		ExemptAmount:    exempt,
		Channel:         in.Channel,
		ExternalID:      in.ExternalID,
		Aggregated:      in.Aggregated,
	}, nil
}

func (in PhysicalNexusInput) toModel(analysisID uuid.UUID) (model.PhysicalNexusFact, error) {
	code, err := parseJurisdiction(in.Jurisdiction)
	if err != nil {
		return model.PhysicalNexusFact{}, err
	}
	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return model.PhysicalNexusFact{}, err
	}
	end, err := parseOptionalDate("end_date", in.EndDate)
	if err != nil {
		return model.PhysicalNexusFact{}, err
	}
	if end != nil && end.Before(start) {
		return model.PhysicalNexusFact{}, invalidf("end_date is before start_date")
	}
	return model.PhysicalNexusFact{
		AnalysisID:   analysisID,
		Jurisdiction: code,
		StartDate:    start,
		EndDate:      end,
		Reason:       in.Reason,
	}, nil
}

func parseJurisdiction(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if !nexus.ValidJurisdiction(code) {
		return "", invalidf("unknown jurisdiction %q", s)
	}
	return code, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, invalidf("invalid %s date format (expected YYYY-MM-DD): %v", field, err)
	}
	return t, nil
}

func parseOptionalDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalidf("invalid %s value: %v", field, err)
	}
	return d, nil
}

func parseOptionalDecimal(field, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDecimal(field, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// --- Model to engine ---

func transactionFromModel(m model.SalesTransaction) nexus.Transaction {
	return nexus.Transaction{
		Jurisdiction: m.Jurisdiction,
		Date:         m.TransactionDate,
		GrossAmount:  m.GrossAmount,
		ExemptAmount: m.ExemptAmount,
		Channel:      nexus.Channel(m.Channel),
		ExternalID:   m.ExternalID,
		Aggregated:   m.Aggregated,
	}
}

func physicalFactFromModel(m model.PhysicalNexusFact) nexus.PhysicalNexusFact {
	return nexus.PhysicalNexusFact{Jurisdiction: m.Jurisdiction, StartDate: m.StartDate, EndDate: m.EndDate}
}

func periodFromWindow(w model.RuleWindow) nexus.Period {
	return nexus.Period{EffectiveFrom: w.EffectiveFrom, EffectiveTo: w.EffectiveTo}
}

func thresholdFromModel(m model.ThresholdRule) nexus.ThresholdRule {
	return nexus.ThresholdRule{
		Jurisdiction:         m.Jurisdiction,
		RevenueThreshold:     m.RevenueThreshold,
		TransactionThreshold: m.TransactionThreshold,
		Operator:             nexus.Operator(m.Operator),
		Lookback:             m.Lookback,
		GracePeriodDays:      m.GracePeriodDays,
		Period:               periodFromWindow(m.RuleWindow),
	}
}

func marketplaceFromModel(m model.MarketplaceRule) nexus.MarketplaceRule {
	return nexus.MarketplaceRule{
		Jurisdiction:          m.Jurisdiction,
		CountsTowardThreshold: m.CountsTowardThreshold,
		ExcludedFromLiability: m.ExcludedFromLiability,
		Period:                periodFromWindow(m.RuleWindow),
	}
}

func taxRateFromModel(m model.TaxRateRule) nexus.TaxRateRule {
	return nexus.TaxRateRule{
		Jurisdiction: m.Jurisdiction,
		StateRate:    m.StateRate,
		AvgLocalRate: m.AvgLocalRate,
		Period:       periodFromWindow(m.RuleWindow),
	}
}

func interestPenaltyFromModel(m model.InterestPenaltyRule) nexus.InterestPenaltyRule {
	return nexus.InterestPenaltyRule{
		Jurisdiction:       m.Jurisdiction,
		AnnualInterestRate: m.AnnualInterestRate,
		Compounding:        nexus.Compounding(m.Compounding),
		FilingFrequency:    nexus.FilingFrequency(m.FilingFrequency),
		PenaltyRate:        m.PenaltyRate,
		PenaltyMin:         m.PenaltyMin,
		PenaltyMax:         m.PenaltyMax,
		PenaltyBasis:       nexus.PenaltyBasis(m.PenaltyBasis),
		VDAInterestWaived:  m.VDAInterestWaived,
		VDALookbackMonths:  m.VDALookbackMonths,
		Period:             periodFromWindow(m.RuleWindow),
	}
}

// --- Results ---

func resultToModel(analysisID uuid.UUID, r nexus.StateYearResult) model.StateYearResult {
	issues, _ := json.Marshal(r.Issues)
	m := model.StateYearResult{
		AnalysisID:                analysisID,
		Jurisdiction:              r.Jurisdiction,
		Year:                      r.Year,
		Status:                    string(r.Status),
		FirstNexusYear:            r.FirstNexusYear,
		NexusDate:                 r.NexusDate,
		ObligationStart:           r.ObligationStart,
		GrossSales:                r.GrossSales,
		TaxableSales:              r.TaxableSales,
		ExemptSales:               r.ExemptSales,
		MarketplaceSales:          r.MarketplaceSales,
		DirectSales:               r.DirectSales,
		TransactionCount:          r.TransactionCount,
		LiableSales:               r.LiableSales,
		CombinedRate:              r.CombinedRate,
		EstimatedTax:              r.EstimatedTax,
		Interest:                  r.Interest,
		Penalties:                 r.Penalties,
		TotalLiability:            r.TotalLiability,
		LookbackAssumptionApplied: r.LookbackAssumptionApplied,
		NeedsManualReview:         r.NeedsManualReview,
		Issues:                    string(issues),
	}
	if r.ThresholdPercent != nil {
		m.ThresholdPercent = decimal.NullDecimal{Decimal: *r.ThresholdPercent, Valid: true}
	}
	return m
}

func resultFromModel(m model.StateYearResult) nexus.StateYearResult {
	r := nexus.StateYearResult{
		Jurisdiction:              m.Jurisdiction,
		Year:                      m.Year,
		Status:                    nexus.Status(m.Status),
		FirstNexusYear:            m.FirstNexusYear,
		NexusDate:                 m.NexusDate,
		ObligationStart:           m.ObligationStart,
		GrossSales:                m.GrossSales,
		TaxableSales:              m.TaxableSales,
		ExemptSales:               m.ExemptSales,
		MarketplaceSales:          m.MarketplaceSales,
		DirectSales:               m.DirectSales,
		TransactionCount:          m.TransactionCount,
		LiableSales:               m.LiableSales,
		CombinedRate:              m.CombinedRate,
		EstimatedTax:              m.EstimatedTax,
		Interest:                  m.Interest,
		Penalties:                 m.Penalties,
		TotalLiability:            m.TotalLiability,
		LookbackAssumptionApplied: m.LookbackAssumptionApplied,
		NeedsManualReview:         m.NeedsManualReview,
	}
	if m.ThresholdPercent.Valid {
		p := m.ThresholdPercent.Decimal
		r.ThresholdPercent = &p
	}
	if m.Issues != "" {
		_ = json.Unmarshal([]byte(m.Issues), &r.Issues)
	}
	return r
}
