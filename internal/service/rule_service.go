package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"taxnexus/internal/model"
	"taxnexus/internal/nexus"
	"taxnexus/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

// Every rule request carries the same window fields.
type RuleWindowRequest struct {
	Jurisdiction  string `json:"jurisdiction" binding:"required,len=2"`
	EffectiveFrom string `json:"effective_from" binding:"required"` // YYYY-MM-DD
	EffectiveTo   string `json:"effective_to"`                      // YYYY-MM-DD, exclusive, empty = current
	Description   string `json:"description"`
}

type ThresholdRuleRequest struct {
	RuleWindowRequest
	RevenueThreshold     string `json:"revenue_threshold"` // Decimal string, empty = no revenue test
	TransactionThreshold *int64 `json:"transaction_threshold"`
	Operator             string `json:"operator" binding:"required,oneof=and or"`
	Lookback             string `json:"lookback" binding:"required"`
	GracePeriodDays      int    `json:"grace_period_days" binding:"min=0"`
}

type MarketplaceRuleRequest struct {
	RuleWindowRequest
	CountsTowardThreshold bool `json:"counts_toward_threshold"`
	ExcludedFromLiability bool `json:"excluded_from_liability"`
}

type TaxRateRuleRequest struct {
	RuleWindowRequest
	StateRate    string `json:"state_rate" binding:"required"` // e.g. "0.0625"
	AvgLocalRate string `json:"avg_local_rate"`
}

type InterestPenaltyRuleRequest struct {
	RuleWindowRequest
	AnnualInterestRate string `json:"annual_interest_rate" binding:"required"`
	Compounding        string `json:"compounding" binding:"required,oneof=simple compound_monthly compound_daily compound_annually"`
	FilingFrequency    string `json:"filing_frequency" binding:"omitempty,oneof=monthly quarterly annual"`
	PenaltyRate        string `json:"penalty_rate" binding:"required"`
	PenaltyMin         string `json:"penalty_min"`
	PenaltyMax         string `json:"penalty_max"`
	PenaltyBasis       string `json:"penalty_basis" binding:"required,oneof=tax tax_plus_interest"`
	VDAInterestWaived  bool   `json:"vda_interest_waived"`
	VDALookbackMonths  *int   `json:"vda_lookback_months"`
}

type CloseRuleRequest struct {
	EffectiveTo string `json:"effective_to" binding:"required"` // YYYY-MM-DD, exclusive
}

type RuleWindowResponse struct {
	ID            string  `json:"id"`
	Jurisdiction  string  `json:"jurisdiction"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
	Description   string  `json:"description"`
}

type ThresholdRuleResponse struct {
	RuleWindowResponse
	RevenueThreshold     *string `json:"revenue_threshold"`
	TransactionThreshold *int64  `json:"transaction_threshold"`
	Operator             string  `json:"operator"`
	Lookback             string  `json:"lookback"`
	GracePeriodDays      int     `json:"grace_period_days"`
}

type MarketplaceRuleResponse struct {
	RuleWindowResponse
	CountsTowardThreshold bool `json:"counts_toward_threshold"`
	ExcludedFromLiability bool `json:"excluded_from_liability"`
}

type TaxRateRuleResponse struct {
	RuleWindowResponse
	StateRate    string `json:"state_rate"`
	AvgLocalRate string `json:"avg_local_rate"`
	CombinedRate string `json:"combined_rate"`
}

type InterestPenaltyRuleResponse struct {
	RuleWindowResponse
	AnnualInterestRate string  `json:"annual_interest_rate"`
	Compounding        string  `json:"compounding"`
	FilingFrequency    string  `json:"filing_frequency"`
	PenaltyRate        string  `json:"penalty_rate"`
	PenaltyMin         *string `json:"penalty_min"`
	PenaltyMax         *string `json:"penalty_max"`
	PenaltyBasis       string  `json:"penalty_basis"`
	VDAInterestWaived  bool    `json:"vda_interest_waived"`
	VDALookbackMonths  *int    `json:"vda_lookback_months"`
}

// --- Interface ---

type RuleService interface {
	ListThresholdRules(ctx context.Context, jurisdiction string) ([]ThresholdRuleResponse, error)
	CreateThresholdRule(ctx context.Context, req ThresholdRuleRequest, userID string) (ThresholdRuleResponse, error)
	ListMarketplaceRules(ctx context.Context, jurisdiction string) ([]MarketplaceRuleResponse, error)
	CreateMarketplaceRule(ctx context.Context, req MarketplaceRuleRequest, userID string) (MarketplaceRuleResponse, error)
	ListTaxRateRules(ctx context.Context, jurisdiction string) ([]TaxRateRuleResponse, error)
	CreateTaxRateRule(ctx context.Context, req TaxRateRuleRequest, userID string) (TaxRateRuleResponse, error)
	ListInterestPenaltyRules(ctx context.Context, jurisdiction string) ([]InterestPenaltyRuleResponse, error)
	CreateInterestPenaltyRule(ctx context.Context, req InterestPenaltyRuleRequest, userID string) (InterestPenaltyRuleResponse, error)

	CloseRule(ctx context.Context, kind nexus.RuleKind, id string, req CloseRuleRequest, userID string) error
	DeleteRule(ctx context.Context, kind nexus.RuleKind, id string, userID string) error

	// LoadRuleTables materializes all four tables for an engine run.
	LoadRuleTables(ctx context.Context) (nexus.RuleTables, error)
}

// RuleRepositories bundles one repository per rule table.
type RuleRepositories struct {
	Thresholds      repository.RuleRepository[model.ThresholdRule]
	Marketplace     repository.RuleRepository[model.MarketplaceRule]
	TaxRates        repository.RuleRepository[model.TaxRateRule]
	InterestPenalty repository.RuleRepository[model.InterestPenaltyRule]
}

type ruleService struct {
	txManager repository.TransactionManager
	repos     RuleRepositories
	audit     auditWriter
}

func NewRuleService(txManager repository.TransactionManager, repos RuleRepositories, auditRepo repository.AuditRepository) RuleService {
	return &ruleService{txManager: txManager, repos: repos, audit: auditWriter{repo: auditRepo}}
}

// --- Implementation ---

func (s *ruleService) ListThresholdRules(ctx context.Context, jurisdiction string) ([]ThresholdRuleResponse, error) {
	return listRules(ctx, s.repos.Thresholds, jurisdiction, nexus.KindThreshold, toThresholdRuleResponse)
}

func (s *ruleService) CreateThresholdRule(ctx context.Context, req ThresholdRuleRequest, userID string) (ThresholdRuleResponse, error) {
	rule, err := req.toModel()
	if err != nil {
		return ThresholdRuleResponse{}, err
	}
	if err := createRule(ctx, s, s.repos.Thresholds, &rule, nexus.KindThreshold, model.ActionCreateThresholdRule, userID, req); err != nil {
		return ThresholdRuleResponse{}, err
	}
	return toThresholdRuleResponse(rule), nil
}

func (s *ruleService) ListMarketplaceRules(ctx context.Context, jurisdiction string) ([]MarketplaceRuleResponse, error) {
	return listRules(ctx, s.repos.Marketplace, jurisdiction, nexus.KindMarketplace, toMarketplaceRuleResponse)
}

func (s *ruleService) CreateMarketplaceRule(ctx context.Context, req MarketplaceRuleRequest, userID string) (MarketplaceRuleResponse, error) {
	rule, err := req.toModel()
	if err != nil {
		return MarketplaceRuleResponse{}, err
	}
	if err := createRule(ctx, s, s.repos.Marketplace, &rule, nexus.KindMarketplace, model.ActionCreateMarketplace, userID, req); err != nil {
		return MarketplaceRuleResponse{}, err
	}
	return toMarketplaceRuleResponse(rule), nil
}

func (s *ruleService) ListTaxRateRules(ctx context.Context, jurisdiction string) ([]TaxRateRuleResponse, error) {
	return listRules(ctx, s.repos.TaxRates, jurisdiction, nexus.KindTaxRate, toTaxRateRuleResponse)
}

func (s *ruleService) CreateTaxRateRule(ctx context.Context, req TaxRateRuleRequest, userID string) (TaxRateRuleResponse, error) {
	rule, err := req.toModel()
	if err != nil {
		return TaxRateRuleResponse{}, err
	}
	if err := createRule(ctx, s, s.repos.TaxRates, &rule, nexus.KindTaxRate, model.ActionCreateTaxRateRule, userID, req); err != nil {
		return TaxRateRuleResponse{}, err
	}
	return toTaxRateRuleResponse(rule), nil
}

func (s *ruleService) ListInterestPenaltyRules(ctx context.Context, jurisdiction string) ([]InterestPenaltyRuleResponse, error) {
	return listRules(ctx, s.repos.InterestPenalty, jurisdiction, nexus.KindInterestPenalty, toInterestPenaltyRuleResponse)
}

func (s *ruleService) CreateInterestPenaltyRule(ctx context.Context, req InterestPenaltyRuleRequest, userID string) (InterestPenaltyRuleResponse, error) {
	rule, err := req.toModel()
	if err != nil {
		return InterestPenaltyRuleResponse{}, err
	}
	if err := createRule(ctx, s, s.repos.InterestPenalty, &rule, nexus.KindInterestPenalty, model.ActionCreateInterestRule, userID, req); err != nil {
		return InterestPenaltyRuleResponse{}, err
	}
	return toInterestPenaltyRuleResponse(rule), nil
}

func (s *ruleService) CloseRule(ctx context.Context, kind nexus.RuleKind, id string, req CloseRuleRequest, userID string) error {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return invalidf("invalid rule id: %v", err)
	}
	to, err := parseDate("effective_to", req.EffectiveTo)
	if err != nil {
		return err
	}
	switch kind {
	case nexus.KindThreshold:
		return closeRule(ctx, s, s.repos.Thresholds, kind, ruleID, to, userID)
	case nexus.KindMarketplace:
		return closeRule(ctx, s, s.repos.Marketplace, kind, ruleID, to, userID)
	case nexus.KindTaxRate:
		return closeRule(ctx, s, s.repos.TaxRates, kind, ruleID, to, userID)
	case nexus.KindInterestPenalty:
		return closeRule(ctx, s, s.repos.InterestPenalty, kind, ruleID, to, userID)
	}
	return invalidf("unknown rule kind %q", kind)
}

func (s *ruleService) DeleteRule(ctx context.Context, kind nexus.RuleKind, id string, userID string) error {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return invalidf("invalid rule id: %v", err)
	}
	switch kind {
	case nexus.KindThreshold:
		return deleteRule(ctx, s, s.repos.Thresholds, kind, ruleID, userID)
	case nexus.KindMarketplace:
		return deleteRule(ctx, s, s.repos.Marketplace, kind, ruleID, userID)
	case nexus.KindTaxRate:
		return deleteRule(ctx, s, s.repos.TaxRates, kind, ruleID, userID)
	case nexus.KindInterestPenalty:
		return deleteRule(ctx, s, s.repos.InterestPenalty, kind, ruleID, userID)
	}
	return invalidf("unknown rule kind %q", kind)
}

func (s *ruleService) LoadRuleTables(ctx context.Context) (nexus.RuleTables, error) {
	var tables nexus.RuleTables
	var err error

	if tables.Thresholds, err = loadRules(ctx, s.repos.Thresholds, nexus.KindThreshold, thresholdFromModel); err != nil {
		return nexus.RuleTables{}, err
	}
	if tables.Marketplace, err = loadRules(ctx, s.repos.Marketplace, nexus.KindMarketplace, marketplaceFromModel); err != nil {
		return nexus.RuleTables{}, err
	}
	if tables.TaxRates, err = loadRules(ctx, s.repos.TaxRates, nexus.KindTaxRate, taxRateFromModel); err != nil {
		return nexus.RuleTables{}, err
	}
	if tables.InterestPenalty, err = loadRules(ctx, s.repos.InterestPenalty, nexus.KindInterestPenalty, interestPenaltyFromModel); err != nil {
		return nexus.RuleTables{}, err
	}
	return tables, nil
}

// --- Generic helpers ---

type storedRule interface {
	RuleID() uuid.UUID
	Window() model.RuleWindow
}

func listRules[T storedRule, R any](ctx context.Context, repo repository.RuleRepository[T], jurisdiction string, kind nexus.RuleKind, toResponse func(T) R) ([]R, error) {
	rules, err := repo.List(ctx, normalizeFilter(jurisdiction))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s rules: %w", kind, err)
	}
	res := make([]R, 0, len(rules))
	for _, r := range rules {
		res = append(res, toResponse(r))
	}
	return res, nil
}

// loadRules reads a whole table. Overlaps are only logged here: the engine
// flags the affected jurisdictions itself.
func loadRules[T storedRule, N nexus.Versioned](ctx context.Context, repo repository.RuleRepository[T], kind nexus.RuleKind, convert func(T) N) ([]N, error) {
	rows, err := repo.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load %s rules: %w", kind, err)
	}
	out := make([]N, 0, len(rows))
	for _, row := range rows {
		out = append(out, convert(row))
	}
	if err := nexus.ValidateRules(kind, out); err != nil {
		log.Printf("[rules] %v", err)
	}
	return out, nil
}

// createRule stores rule unless another version of the same jurisdiction
// overlaps it. The check and the insert share one transaction.
func createRule[T storedRule](ctx context.Context, s *ruleService, repo repository.RuleRepository[T], rule *T, kind nexus.RuleKind, action, userID string, details interface{}) error {
	w := (*rule).Window()
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := repo.FindOverlapping(txCtx, w.Jurisdiction, w.EffectiveFrom, w.EffectiveTo, nil)
		if err != nil {
			return fmt.Errorf("failed to check overlap: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: a %s rule for %s already covers part of %s", ErrConflict, kind, w.Jurisdiction, periodFromWindow(w))
		}
		if err := repo.Create(txCtx, rule); err != nil {
			return fmt.Errorf("failed to create %s rule: %w", kind, err)
		}
		return s.audit.write(txCtx, userID, action, (*rule).RuleID().String(), w.Jurisdiction+" "+periodFromWindow(w).String(), details)
	})
}

func closeRule[T storedRule](ctx context.Context, s *ruleService, repo repository.RuleRepository[T], kind nexus.RuleKind, id uuid.UUID, to time.Time, userID string) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rule, err := repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(string(kind)+" rule", err)
		}
		w := (*rule).Window()
		if !to.After(w.EffectiveFrom) {
			return invalidf("effective_to must be after effective_from %s", w.EffectiveFrom.Format(dateLayout))
		}
		if w.EffectiveTo != nil && !to.Before(*w.EffectiveTo) {
			return invalidf("a rule can only be closed earlier than its current end %s", w.EffectiveTo.Format(dateLayout))
		}
		if err := repo.Close(txCtx, id, to); err != nil {
			return fmt.Errorf("failed to close %s rule: %w", kind, err)
		}
		return s.audit.write(txCtx, userID, model.ActionCloseRule, id.String(), w.Jurisdiction+" "+string(kind),
			map[string]string{"effective_to": to.Format(dateLayout)})
	})
}

func deleteRule[T storedRule](ctx context.Context, s *ruleService, repo repository.RuleRepository[T], kind nexus.RuleKind, id uuid.UUID, userID string) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rule, err := repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(string(kind)+" rule", err)
		}
		if err := repo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete %s rule: %w", kind, err)
		}
		w := (*rule).Window()
		return s.audit.write(txCtx, userID, model.ActionDeleteRule, id.String(), w.Jurisdiction+" "+string(kind),
			map[string]string{"deleted_id": id.String(), "kind": string(kind)})
	})
}

func normalizeFilter(jurisdiction string) string {
	if jurisdiction == "" {
		return ""
	}
	code, err := parseJurisdiction(jurisdiction)
	if err != nil {
		// an unknown code simply matches nothing
		return jurisdiction
	}
	return code
}

// --- Request parsing ---

func (req RuleWindowRequest) toModel() (model.RuleWindow, error) {
	code, err := parseJurisdiction(req.Jurisdiction)
	if err != nil {
		return model.RuleWindow{}, err
	}
	from, err := parseDate("effective_from", req.EffectiveFrom)
	if err != nil {
		return model.RuleWindow{}, err
	}
	to, err := parseOptionalDate("effective_to", req.EffectiveTo)
	if err != nil {
		return model.RuleWindow{}, err
	}
	if to != nil && !to.After(from) {
		return model.RuleWindow{}, invalidf("effective_to must be after effective_from")
	}
	return model.RuleWindow{Jurisdiction: code, EffectiveFrom: from, EffectiveTo: to, Description: req.Description}, nil
}

func (req ThresholdRuleRequest) toModel() (model.ThresholdRule, error) {
	w, err := req.RuleWindowRequest.toModel()
	if err != nil {
		return model.ThresholdRule{}, err
	}
	revenue, err := parseOptionalDecimal("revenue_threshold", req.RevenueThreshold)
	if err != nil {
		return model.ThresholdRule{}, err
	}
	if revenue != nil && !revenue.IsPositive() {
		return model.ThresholdRule{}, invalidf("revenue_threshold must be positive")
	}
	if req.TransactionThreshold != nil && *req.TransactionThreshold <= 0 {
		return model.ThresholdRule{}, invalidf("transaction_threshold must be positive")
	}
	switch nexus.Operator(req.Operator) {
	case nexus.OperatorAnd, nexus.OperatorOr:
	default:
		return model.ThresholdRule{}, invalidf("unknown operator %q", req.Operator)
	}
	if req.Lookback == "" {
		return model.ThresholdRule{}, invalidf("lookback is required")
	}
	if req.GracePeriodDays < 0 {
		return model.ThresholdRule{}, invalidf("grace_period_days must not be negative")
	}
	return model.ThresholdRule{
		RevenueThreshold:     revenue,
		TransactionThreshold: req.TransactionThreshold,
		Operator:             req.Operator,
		Lookback:             req.Lookback,
		GracePeriodDays:      req.GracePeriodDays,
		RuleWindow:           w,
	}, nil
}

func (req MarketplaceRuleRequest) toModel() (model.MarketplaceRule, error) {
	w, err := req.RuleWindowRequest.toModel()
	if err != nil {
		return model.MarketplaceRule{}, err
	}
	return model.MarketplaceRule{
		CountsTowardThreshold: req.CountsTowardThreshold,
		ExcludedFromLiability: req.ExcludedFromLiability,
		RuleWindow:            w,
	}, nil
}

func (req TaxRateRuleRequest) toModel() (model.TaxRateRule, error) {
	w, err := req.RuleWindowRequest.toModel()
	if err != nil {
		return model.TaxRateRule{}, err
	}
	stateRate, err := parseRate("state_rate", req.StateRate)
	if err != nil {
		return model.TaxRateRule{}, err
	}
	localRate := decimal.Zero
	if req.AvgLocalRate != "" {
		if localRate, err = parseRate("avg_local_rate", req.AvgLocalRate); err != nil {
			return model.TaxRateRule{}, err
		}
	}
	return model.TaxRateRule{StateRate: stateRate, AvgLocalRate: localRate, RuleWindow: w}, nil
}

func (req InterestPenaltyRuleRequest) toModel() (model.InterestPenaltyRule, error) {
	w, err := req.RuleWindowRequest.toModel()
	if err != nil {
		return model.InterestPenaltyRule{}, err
	}
	interest, err := parseRate("annual_interest_rate", req.AnnualInterestRate)
	if err != nil {
		return model.InterestPenaltyRule{}, err
	}
	penalty, err := parseRate("penalty_rate", req.PenaltyRate)
	if err != nil {
		return model.InterestPenaltyRule{}, err
	}
	penaltyMin, err := parseOptionalDecimal("penalty_min", req.PenaltyMin)
	if err != nil {
		return model.InterestPenaltyRule{}, err
	}
	penaltyMax, err := parseOptionalDecimal("penalty_max", req.PenaltyMax)
	if err != nil {
		return model.InterestPenaltyRule{}, err
	}
	if penaltyMin != nil && penaltyMax != nil && penaltyMin.GreaterThan(*penaltyMax) {
		return model.InterestPenaltyRule{}, invalidf("penalty_min is greater than penalty_max")
	}

	switch nexus.Compounding(req.Compounding) {
	case nexus.CompoundingSimple, nexus.CompoundingMonthly, nexus.CompoundingDaily, nexus.CompoundingAnnually:
	default:
		return model.InterestPenaltyRule{}, invalidf("unknown compounding %q", req.Compounding)
	}
	frequency := req.FilingFrequency
	if frequency == "" {
		frequency = string(nexus.FilingAnnual)
	}
	switch nexus.FilingFrequency(frequency) {
	case nexus.FilingMonthly, nexus.FilingQuarterly, nexus.FilingAnnual:
	default:
		return model.InterestPenaltyRule{}, invalidf("unknown filing_frequency %q", req.FilingFrequency)
	}
	switch nexus.PenaltyBasis(req.PenaltyBasis) {
	case nexus.PenaltyBasisTax, nexus.PenaltyBasisTaxPlusInterest:
	default:
		return model.InterestPenaltyRule{}, invalidf("unknown penalty_basis %q", req.PenaltyBasis)
	}
	if req.VDALookbackMonths != nil && *req.VDALookbackMonths < 0 {
		return model.InterestPenaltyRule{}, invalidf("vda_lookback_months must not be negative")
	}

	return model.InterestPenaltyRule{
		AnnualInterestRate: interest,
		Compounding:        req.Compounding,
		FilingFrequency:    frequency,
		PenaltyRate:        penalty,
		PenaltyMin:         penaltyMin,
		PenaltyMax:         penaltyMax,
		PenaltyBasis:       req.PenaltyBasis,
		VDAInterestWaived:  req.VDAInterestWaived,
		VDALookbackMonths:  req.VDALookbackMonths,
		RuleWindow:         w,
	}, nil
}

// parseRate accepts a fraction in [0, 1].
func parseRate(field, s string) (decimal.Decimal, error) {
	d, err := parseDecimal(field, s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, invalidf("%s must be a fraction between 0 and 1", field)
	}
	return d, nil
}

// --- Responses ---

func toWindowResponse(id uuid.UUID, w model.RuleWindow) RuleWindowResponse {
	resp := RuleWindowResponse{
		ID:            id.String(),
		Jurisdiction:  w.Jurisdiction,
		EffectiveFrom: w.EffectiveFrom.Format(dateLayout),
		Description:   w.Description,
	}
	if w.EffectiveTo != nil {
		s := w.EffectiveTo.Format(dateLayout)
		resp.EffectiveTo = &s
	}
	return resp
}

func optionalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func toThresholdRuleResponse(r model.ThresholdRule) ThresholdRuleResponse {
	return ThresholdRuleResponse{
		RuleWindowResponse:   toWindowResponse(r.ID, r.RuleWindow),
		RevenueThreshold:     optionalString(r.RevenueThreshold),
		TransactionThreshold: r.TransactionThreshold,
		Operator:             r.Operator,
		Lookback:             r.Lookback,
		GracePeriodDays:      r.GracePeriodDays,
	}
}

func toMarketplaceRuleResponse(r model.MarketplaceRule) MarketplaceRuleResponse {
	return MarketplaceRuleResponse{
		RuleWindowResponse:    toWindowResponse(r.ID, r.RuleWindow),
		CountsTowardThreshold: r.CountsTowardThreshold,
		ExcludedFromLiability: r.ExcludedFromLiability,
	}
}

func toTaxRateRuleResponse(r model.TaxRateRule) TaxRateRuleResponse {
	return TaxRateRuleResponse{
		RuleWindowResponse: toWindowResponse(r.ID, r.RuleWindow),
		StateRate:          r.StateRate.String(),
		AvgLocalRate:       r.AvgLocalRate.String(),
		CombinedRate:       r.StateRate.Add(r.AvgLocalRate).String(),
	}
}

func toInterestPenaltyRuleResponse(r model.InterestPenaltyRule) InterestPenaltyRuleResponse {
	return InterestPenaltyRuleResponse{
		RuleWindowResponse: toWindowResponse(r.ID, r.RuleWindow),
		AnnualInterestRate: r.AnnualInterestRate.String(),
		Compounding:        r.Compounding,
		FilingFrequency:    r.FilingFrequency,
		PenaltyRate:        r.PenaltyRate.String(),
		PenaltyMin:         optionalString(r.PenaltyMin),
		PenaltyMax:         optionalString(r.PenaltyMax),
		PenaltyBasis:       r.PenaltyBasis,
		VDAInterestWaived:  r.VDAInterestWaived,
		VDALookbackMonths:  r.VDALookbackMonths,
	}
}
