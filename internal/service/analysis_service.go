package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taxnexus/internal/model"
	"taxnexus/internal/nexus"
	"taxnexus/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventAnalysisRecalculated is published after results are replaced.
const EventAnalysisRecalculated = "analysis.recalculated"

// EventPublisher pushes events to connected clients. Publishing never blocks
// and never fails the operation that triggered it.
type EventPublisher interface {
	Publish(event string, data interface{})
}

// --- DTOs ---

type CreateAnalysisRequest struct {
	ClientName string `json:"client_name" binding:"required"`
	AsOfDate   string `json:"as_of_date" binding:"required"` // YYYY-MM-DD
}

type AnalysisResponse struct {
	ID               string  `json:"id"`
	ClientName       string  `json:"client_name"`
	AsOfDate         string  `json:"as_of_date"`
	Status           string  `json:"status"`
	LastCalculatedAt *string `json:"last_calculated_at"`
	TransactionCount *int64  `json:"transaction_count,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

type ImportTransactionsRequest struct {
	Transactions []TransactionInput `json:"transactions" binding:"required,min=1,dive"`
}

type ImportTransactionsResponse struct {
	Imported int   `json:"imported"`
	Total    int64 `json:"total"`
}

type ResultResponse struct {
	Jurisdiction     string  `json:"jurisdiction"`
	Year             int     `json:"year"`
	Status           string  `json:"status"`
	FirstNexusYear   *int    `json:"first_nexus_year"`
	NexusDate        *string `json:"nexus_date"`
	ObligationStart  *string `json:"obligation_start"`
	ThresholdPercent *string `json:"threshold_percent"`

	GrossSales       string `json:"gross_sales"`
	TaxableSales     string `json:"taxable_sales"`
	ExemptSales      string `json:"exempt_sales"`
	MarketplaceSales string `json:"marketplace_sales"`
	DirectSales      string `json:"direct_sales"`
	TransactionCount *int64 `json:"transaction_count"`

	LiableSales    *string `json:"liable_sales"`
	CombinedRate   *string `json:"combined_rate"`
	EstimatedTax   *string `json:"estimated_tax"`
	Interest       *string `json:"interest"`
	Penalties      *string `json:"penalties"`
	TotalLiability *string `json:"total_liability"`

	LookbackAssumptionApplied bool          `json:"lookback_assumption_applied"`
	NeedsManualReview         bool          `json:"needs_manual_review"`
	Issues                    []nexus.Issue `json:"issues"`
}

type SummaryResponse struct {
	TotalLiability         string `json:"total_liability"`
	TotalTax               string `json:"total_tax"`
	TotalInterest          string `json:"total_interest"`
	TotalPenalties         string `json:"total_penalties"`
	JurisdictionsWithNexus int    `json:"jurisdictions_with_nexus"`
	JurisdictionsFlagged   int    `json:"jurisdictions_flagged"`
	ResultsNeedingReview   int    `json:"results_needing_review"`
}

type CalculationResponse struct {
	AnalysisID       string           `json:"analysis_id"`
	AsOfDate         string           `json:"as_of_date"`
	LastCalculatedAt *string          `json:"last_calculated_at"`
	Summary          SummaryResponse  `json:"summary"`
	Results          []ResultResponse `json:"results"`
}

type VDARequest struct {
	SelectedJurisdictions []string `json:"selected_jurisdictions" binding:"required,min=1"`
}

type VDAResponse struct {
	AnalysisID string `json:"analysis_id"`
	AsOfDate   string `json:"as_of_date"`
	nexus.VDAScenario
}

// --- Interface ---

type AnalysisService interface {
	CreateAnalysis(ctx context.Context, req CreateAnalysisRequest, userID string) (AnalysisResponse, error)
	ListAnalyses(ctx context.Context, page, limit int) ([]AnalysisResponse, int64, error)
	GetAnalysis(ctx context.Context, id string) (AnalysisResponse, error)
	DeleteAnalysis(ctx context.Context, id string, userID string) error
	ImportTransactions(ctx context.Context, id string, req ImportTransactionsRequest, userID string) (ImportTransactionsResponse, error)

	// Calculate reruns the engine over the stored snapshot, replaces the
	// previous results and notifies subscribers.
	Calculate(ctx context.Context, id string, userID string) (CalculationResponse, error)
	// Recalculate is Calculate without the notification. It joins the
	// transaction carried by ctx, so callers publish after their commit.
	Recalculate(ctx context.Context, analysisID uuid.UUID, userID, trigger string) (CalculationResponse, error)

	GetResults(ctx context.Context, id string, jurisdiction string) (CalculationResponse, error)
	ModelVDA(ctx context.Context, id string, req VDARequest) (VDAResponse, error)
}

// AnalysisRepositories bundles the stores an analysis is assembled from.
type AnalysisRepositories struct {
	Analyses      repository.AnalysisRepository
	Transactions  repository.SalesTransactionRepository
	PhysicalFacts repository.PhysicalNexusRepository
	Results       repository.ResultRepository
	Audit         repository.AuditRepository
}

type analysisService struct {
	txManager repository.TransactionManager
	repos     AnalysisRepositories
	rules     RuleService
	engine    *nexus.Engine
	publisher EventPublisher
	audit     auditWriter
	now       func() time.Time
}

func NewAnalysisService(txManager repository.TransactionManager, repos AnalysisRepositories, rules RuleService, engine *nexus.Engine, publisher EventPublisher) AnalysisService {
	return &analysisService{
		txManager: txManager,
		repos:     repos,
		rules:     rules,
		engine:    engine,
		publisher: publisher,
		audit:     auditWriter{repo: repos.Audit},
		now:       time.Now,
	}
}

// --- Implementation ---

func (s *analysisService) CreateAnalysis(ctx context.Context, req CreateAnalysisRequest, userID string) (AnalysisResponse, error) {
	asOf, err := parseDate("as_of_date", req.AsOfDate)
	if err != nil {
		return AnalysisResponse{}, err
	}

	a := model.Analysis{
		ClientName: req.ClientName,
		AsOfDate:   asOf,
		Status:     model.AnalysisStatusDraft,
		CreatedBy:  parseUserID(userID),
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repos.Analyses.Create(txCtx, &a); err != nil {
			return fmt.Errorf("failed to create analysis: %w", err)
		}
		return s.audit.write(txCtx, userID, model.ActionCreateAnalysis, a.ID.String(), a.ClientName, req)
	})
	if err != nil {
		return AnalysisResponse{}, err
	}
	return toAnalysisResponse(a), nil
}

func (s *analysisService) ListAnalyses(ctx context.Context, page, limit int) ([]AnalysisResponse, int64, error) {
	analyses, total, err := s.repos.Analyses.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch analyses: %w", err)
	}
	res := make([]AnalysisResponse, 0, len(analyses))
	for _, a := range analyses {
		res = append(res, toAnalysisResponse(a))
	}
	return res, total, nil
}

func (s *analysisService) GetAnalysis(ctx context.Context, id string) (AnalysisResponse, error) {
	a, err := s.findAnalysis(ctx, id)
	if err != nil {
		return AnalysisResponse{}, err
	}
	count, err := s.repos.Transactions.CountByAnalysis(ctx, a.ID)
	if err != nil {
		return AnalysisResponse{}, fmt.Errorf("failed to count transactions: %w", err)
	}
	resp := toAnalysisResponse(*a)
	resp.TransactionCount = &count
	return resp, nil
}

func (s *analysisService) DeleteAnalysis(ctx context.Context, id string, userID string) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.findAnalysis(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.repos.Analyses.Delete(txCtx, a.ID); err != nil {
			return fmt.Errorf("failed to delete analysis: %w", err)
		}
		return s.audit.write(txCtx, userID, model.ActionDeleteAnalysis, a.ID.String(), a.ClientName, map[string]string{"deleted_id": a.ID.String()})
	})
}

// ImportTransactions appends rows to the analysis. Every row is validated
// before anything is written.
func (s *analysisService) ImportTransactions(ctx context.Context, id string, req ImportTransactionsRequest, userID string) (ImportTransactionsResponse, error) {
	if len(req.Transactions) == 0 {
		return ImportTransactionsResponse{}, invalidf("no transactions to import")
	}

	var resp ImportTransactionsResponse
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.findAnalysis(txCtx, id)
		if err != nil {
			return err
		}

		rows := make([]model.SalesTransaction, 0, len(req.Transactions))
		for i, in := range req.Transactions {
			row, err := in.toModel(a.ID)
			if err != nil {
				return fmt.Errorf("transaction %d: %w", i, err)
			}
			rows = append(rows, row)
		}

		if err := s.repos.Transactions.CreateBatch(txCtx, rows); err != nil {
			return fmt.Errorf("failed to import transactions: %w", err)
		}
		total, err := s.repos.Transactions.CountByAnalysis(txCtx, a.ID)
		if err != nil {
			return fmt.Errorf("failed to count transactions: %w", err)
		}
		resp = ImportTransactionsResponse{Imported: len(rows), Total: total}

		return s.audit.write(txCtx, userID, model.ActionImportTransactions, a.ID.String(), a.ClientName, resp)
	})
	if err != nil {
		return ImportTransactionsResponse{}, err
	}
	return resp, nil
}

func (s *analysisService) Calculate(ctx context.Context, id string, userID string) (CalculationResponse, error) {
	analysisID, err := uuid.Parse(id)
	if err != nil {
		return CalculationResponse{}, invalidf("invalid analysis id: %v", err)
	}
	resp, err := s.Recalculate(ctx, analysisID, userID, "manual")
	if err != nil {
		return CalculationResponse{}, err
	}
	s.publisher.Publish(EventAnalysisRecalculated, resp.Summary.event(resp.AnalysisID))
	return resp, nil
}

func (s *analysisService) Recalculate(ctx context.Context, analysisID uuid.UUID, userID, trigger string) (CalculationResponse, error) {
	var resp CalculationResponse
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.repos.Analyses.FindByID(txCtx, analysisID)
		if err != nil {
			return lookupErr("analysis", err)
		}

		snap, err := s.loadSnapshot(txCtx, a)
		if err != nil {
			return err
		}
		started := s.now()
		out, err := s.engine.Run(snap)
		if err != nil {
			if errors.Is(err, nexus.ErrInvalidInput) {
				return fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			return fmt.Errorf("failed to run engine: %w", err)
		}

		rows := make([]model.StateYearResult, 0, len(out.Results))
		for _, r := range out.Results {
			rows = append(rows, resultToModel(a.ID, r))
		}
		if err := s.repos.Results.ReplaceForAnalysis(txCtx, a.ID, rows); err != nil {
			return fmt.Errorf("failed to store results: %w", err)
		}

		calculatedAt := s.now().UTC()
		if err := s.repos.Analyses.MarkCalculated(txCtx, a.ID, calculatedAt); err != nil {
			return fmt.Errorf("failed to update analysis: %w", err)
		}
		a.LastCalculatedAt = &calculatedAt

		resp = toCalculationResponse(a, out.Results)
		log.Printf("[analysis] %s recalculated (%s): %d results, %d need review, took %s",
			a.ID, trigger, len(out.Results), out.Summary.ResultsNeedingReview, s.now().Sub(started))

		return s.audit.write(txCtx, userID, model.ActionCalculateAnalysis, a.ID.String(), a.ClientName, map[string]interface{}{
			"trigger":         trigger,
			"results":         len(out.Results),
			"total_liability": resp.Summary.TotalLiability,
		})
	})
	if err != nil {
		return CalculationResponse{}, err
	}
	return resp, nil
}

func (s *analysisService) GetResults(ctx context.Context, id string, jurisdiction string) (CalculationResponse, error) {
	a, err := s.findAnalysis(ctx, id)
	if err != nil {
		return CalculationResponse{}, err
	}
	results, err := s.storedResults(ctx, a.ID, normalizeFilter(jurisdiction))
	if err != nil {
		return CalculationResponse{}, err
	}
	return toCalculationResponse(a, results), nil
}

// ModelVDA prices a VDA over the stored results with the current rule
// tables. The scenario is returned, never stored.
func (s *analysisService) ModelVDA(ctx context.Context, id string, req VDARequest) (VDAResponse, error) {
	selected := make([]string, 0, len(req.SelectedJurisdictions))
	for _, code := range req.SelectedJurisdictions {
		c, err := parseJurisdiction(code)
		if err != nil {
			return VDAResponse{}, err
		}
		selected = append(selected, c)
	}
	if len(selected) == 0 {
		return VDAResponse{}, invalidf("select at least one jurisdiction")
	}

	a, err := s.findAnalysis(ctx, id)
	if err != nil {
		return VDAResponse{}, err
	}
	if a.Status != model.AnalysisStatusCalculated {
		return VDAResponse{}, invalidf("analysis %s has not been calculated", a.ID)
	}

	results, err := s.storedResults(ctx, a.ID, "")
	if err != nil {
		return VDAResponse{}, err
	}
	tables, err := s.rules.LoadRuleTables(ctx)
	if err != nil {
		return VDAResponse{}, err
	}

	scenario := nexus.ModelVDA(results, nexus.NewRuleSet(tables), selected, a.AsOfDate)
	return VDAResponse{
		AnalysisID:  a.ID.String(),
		AsOfDate:    a.AsOfDate.Format(dateLayout),
		VDAScenario: scenario,
	}, nil
}

// --- Helpers ---

func (s *analysisService) findAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	analysisID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalidf("invalid analysis id: %v", err)
	}
	a, err := s.repos.Analyses.FindByID(ctx, analysisID)
	if err != nil {
		return nil, lookupErr("analysis", err)
	}
	return a, nil
}

// loadSnapshot materializes everything the engine needs for one run.
func (s *analysisService) loadSnapshot(ctx context.Context, a *model.Analysis) (nexus.Snapshot, error) {
	txns, err := s.repos.Transactions.ListByAnalysis(ctx, a.ID)
	if err != nil {
		return nexus.Snapshot{}, fmt.Errorf("failed to load transactions: %w", err)
	}
	facts, err := s.repos.PhysicalFacts.ListByAnalysis(ctx, a.ID)
	if err != nil {
		return nexus.Snapshot{}, fmt.Errorf("failed to load physical nexus facts: %w", err)
	}
	tables, err := s.rules.LoadRuleTables(ctx)
	if err != nil {
		return nexus.Snapshot{}, err
	}

	snap := nexus.Snapshot{
		AsOf:          a.AsOfDate,
		Transactions:  make([]nexus.Transaction, 0, len(txns)),
		PhysicalFacts: make([]nexus.PhysicalNexusFact, 0, len(facts)),
		Rules:         tables,
	}
	for _, t := range txns {
		snap.Transactions = append(snap.Transactions, transactionFromModel(t))
	}
	for _, f := range facts {
		snap.PhysicalFacts = append(snap.PhysicalFacts, physicalFactFromModel(f))
	}
	return snap, nil
}

func (s *analysisService) storedResults(ctx context.Context, analysisID uuid.UUID, jurisdiction string) ([]nexus.StateYearResult, error) {
	rows, err := s.repos.Results.ListByAnalysis(ctx, analysisID, jurisdiction)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}
	results := make([]nexus.StateYearResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, resultFromModel(row))
	}
	return results, nil
}

func toAnalysisResponse(a model.Analysis) AnalysisResponse {
	return AnalysisResponse{
		ID:               a.ID.String(),
		ClientName:       a.ClientName,
		AsOfDate:         a.AsOfDate.Format(dateLayout),
		Status:           a.Status,
		LastCalculatedAt: formatTimestamp(a.LastCalculatedAt),
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
}

func toCalculationResponse(a *model.Analysis, results []nexus.StateYearResult) CalculationResponse {
	resp := CalculationResponse{
		AnalysisID:       a.ID.String(),
		AsOfDate:         a.AsOfDate.Format(dateLayout),
		LastCalculatedAt: formatTimestamp(a.LastCalculatedAt),
		Summary:          toSummaryResponse(nexus.Summarize(results)),
		Results:          make([]ResultResponse, 0, len(results)),
	}
	for _, r := range results {
		resp.Results = append(resp.Results, toResultResponse(r))
	}
	return resp
}

func toSummaryResponse(s nexus.Summary) SummaryResponse {
	return SummaryResponse{
		TotalLiability:         s.TotalLiability.StringFixed(2),
		TotalTax:               s.TotalTax.StringFixed(2),
		TotalInterest:          s.TotalInterest.StringFixed(2),
		TotalPenalties:         s.TotalPenalties.StringFixed(2),
		JurisdictionsWithNexus: s.JurisdictionsWithNexus,
		JurisdictionsFlagged:   s.JurisdictionsFlagged,
		ResultsNeedingReview:   s.ResultsNeedingReview,
	}
}

// RecalculatedEvent is published after every committed run.
type RecalculatedEvent struct {
	AnalysisID string          `json:"analysis_id"`
	Summary    SummaryResponse `json:"summary"`
}

// Scope routes the event to subscribers of this analysis.
func (e RecalculatedEvent) Scope() string { return e.AnalysisID }

func (s SummaryResponse) event(analysisID string) RecalculatedEvent {
	return RecalculatedEvent{AnalysisID: analysisID, Summary: s}
}

func toResultResponse(r nexus.StateYearResult) ResultResponse {
	issues := r.Issues
	if issues == nil {
		issues = []nexus.Issue{}
	}
	resp := ResultResponse{
		Jurisdiction:              r.Jurisdiction,
		Year:                      r.Year,
		Status:                    string(r.Status),
		FirstNexusYear:            r.FirstNexusYear,
		NexusDate:                 formatDate(r.NexusDate),
		ObligationStart:           formatDate(r.ObligationStart),
		GrossSales:                r.GrossSales.StringFixed(2),
		TaxableSales:              r.TaxableSales.StringFixed(2),
		ExemptSales:               r.ExemptSales.StringFixed(2),
		MarketplaceSales:          r.MarketplaceSales.StringFixed(2),
		DirectSales:               r.DirectSales.StringFixed(2),
		TransactionCount:          r.TransactionCount,
		LiableSales:               fixed(r.LiableSales, 2),
		CombinedRate:              fixed(r.CombinedRate, 6),
		EstimatedTax:              fixed(r.EstimatedTax, 2),
		Interest:                  fixed(r.Interest, 2),
		Penalties:                 fixed(r.Penalties, 2),
		TotalLiability:            fixed(r.TotalLiability, 2),
		LookbackAssumptionApplied: r.LookbackAssumptionApplied,
		NeedsManualReview:         r.NeedsManualReview,
		Issues:                    issues,
	}
	if r.ThresholdPercent != nil {
		p := r.ThresholdPercent.StringFixed(2)
		resp.ThresholdPercent = &p
	}
	return resp
}

func fixed(d decimal.NullDecimal, places int32) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(places)
	return &s
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
