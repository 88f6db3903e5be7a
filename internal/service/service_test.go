package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"taxnexus/internal/database"
	"taxnexus/internal/model"
	"taxnexus/internal/nexus"
	"taxnexus/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type testServices struct {
	rules     RuleService
	analyses  AnalysisService
	physical  PhysicalNexusService
	audit     AuditService
	stats     StatisticsService
	publisher *recordingPublisher
	db        *gorm.DB
}

func newTestServices(t *testing.T) testServices {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	txm := repository.NewTransactionManager(db)
	auditRepo := repository.NewAuditRepository(db)
	pub := &recordingPublisher{}

	rules := NewRuleService(txm, RuleRepositories{
		Thresholds:      repository.NewRuleRepository[model.ThresholdRule](db),
		Marketplace:     repository.NewRuleRepository[model.MarketplaceRule](db),
		TaxRates:        repository.NewRuleRepository[model.TaxRateRule](db),
		InterestPenalty: repository.NewRuleRepository[model.InterestPenaltyRule](db),
	}, auditRepo)
	facts := repository.NewPhysicalNexusRepository(db)
	analyses := NewAnalysisService(txm, AnalysisRepositories{
		Analyses:      repository.NewAnalysisRepository(db),
		Transactions:  repository.NewSalesTransactionRepository(db),
		PhysicalFacts: facts,
		Results:       repository.NewResultRepository(db),
		Audit:         auditRepo,
	}, rules, nexus.NewEngine(nexus.Options{}), pub)

	return testServices{
		rules:     rules,
		analyses:  analyses,
		physical:  NewPhysicalNexusService(txm, facts, auditRepo, analyses, pub),
		audit:     NewAuditService(auditRepo),
		stats:     NewStatisticsService(repository.NewStatisticsRepository(db)),
		publisher: pub,
		db:        db,
	}
}

// seedRules gives code a $100k-or-200 calendar-year test, marketplace sales
// neither counted nor taxed, a 7% combined rate and 12% simple interest with
// a 10% penalty on tax.
func seedRules(t *testing.T, s RuleService, code string) {
	t.Helper()
	ctx := context.Background()
	window := RuleWindowRequest{Jurisdiction: strings.ToLower(code), EffectiveFrom: "2018-01-01"}
	txnThreshold := int64(200)

	if _, err := s.CreateThresholdRule(ctx, ThresholdRuleRequest{
		RuleWindowRequest:    window,
		RevenueThreshold:     "100000",
		TransactionThreshold: &txnThreshold,
		Operator:             "or",
		Lookback:             "current calendar year",
	}, ""); err != nil {
		t.Fatalf("threshold rule: %v", err)
	}
	if _, err := s.CreateMarketplaceRule(ctx, MarketplaceRuleRequest{
		RuleWindowRequest:     window,
		ExcludedFromLiability: true,
	}, ""); err != nil {
		t.Fatalf("marketplace rule: %v", err)
	}
	if _, err := s.CreateTaxRateRule(ctx, TaxRateRuleRequest{
		RuleWindowRequest: window,
		StateRate:         "0.06",
		AvgLocalRate:      "0.01",
	}, ""); err != nil {
		t.Fatalf("tax rate rule: %v", err)
	}
	if _, err := s.CreateInterestPenaltyRule(ctx, InterestPenaltyRuleRequest{
		RuleWindowRequest:  window,
		AnnualInterestRate: "0.12",
		Compounding:        "simple",
		PenaltyRate:        "0.10",
		PenaltyBasis:       "tax",
	}, ""); err != nil {
		t.Fatalf("interest rule: %v", err)
	}
}

func TestAnalysisLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)
	seedRules(t, svc.rules, "CO")
	const userID = "3f1c2a4e-9a0b-4c1d-8e2f-1a2b3c4d5e6f"

	a, err := svc.analyses.CreateAnalysis(ctx, CreateAnalysisRequest{ClientName: "Acme", AsOfDate: "2023-12-31"}, userID)
	if err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}
	imported, err := svc.analyses.ImportTransactions(ctx, a.ID, ImportTransactionsRequest{Transactions: []TransactionInput{
		{Jurisdiction: "co", Date: "2022-03-01", GrossAmount: "80000", Channel: "direct"},
		{Jurisdiction: "CO", Date: "2022-04-01", GrossAmount: "40000", Channel: "marketplace"},
	}}, userID)
	if err != nil {
		t.Fatalf("ImportTransactions: %v", err)
	}
	if imported.Imported != 2 || imported.Total != 2 {
		t.Errorf("import = %+v, want 2 imported of 2", imported)
	}

	calc, err := svc.analyses.Calculate(ctx, a.ID, userID)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(calc.Results) != 1 || calc.Results[0].Status != "none" {
		t.Fatalf("results = %+v, want one CO 2022 row with status none", calc.Results)
	}
	if calc.Summary.TotalLiability != "0.00" {
		t.Errorf("total liability = %s, want 0.00", calc.Summary.TotalLiability)
	}
	if svc.publisher.count() != 1 {
		t.Errorf("events after Calculate = %d, want 1", svc.publisher.count())
	}

	// physical presence from 2021 makes the 2022 direct sales liable
	mutation, err := svc.physical.Create(ctx, a.ID, PhysicalNexusInput{Jurisdiction: "CO", StartDate: "2021-01-01", Reason: "warehouse"}, userID)
	if err != nil {
		t.Fatalf("physical Create: %v", err)
	}
	if mutation.Fact == nil || mutation.Fact.Jurisdiction != "CO" {
		t.Errorf("fact = %+v, want a CO fact", mutation.Fact)
	}
	if svc.publisher.count() != 2 {
		t.Errorf("events after physical edit = %d, want 2", svc.publisher.count())
	}

	stored, err := svc.analyses.GetResults(ctx, a.ID, "co")
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if len(stored.Results) != 1 {
		t.Fatalf("stored results = %d, want 1", len(stored.Results))
	}
	r := stored.Results[0]
	if r.Status != "physical" {
		t.Errorf("status = %s, want physical", r.Status)
	}
	want := map[string]string{"liable": "80000.00", "tax": "5600.00", "interest": "672.00", "penalties": "560.00", "total": "6832.00"}
	got := map[string]*string{"liable": r.LiableSales, "tax": r.EstimatedTax, "interest": r.Interest, "penalties": r.Penalties, "total": r.TotalLiability}
	for k, w := range want {
		if got[k] == nil || *got[k] != w {
			t.Errorf("%s = %v, want %s", k, got[k], w)
		}
	}
	if stored.Summary.TotalLiability != "6832.00" || stored.Summary.JurisdictionsWithNexus != 1 {
		t.Errorf("summary = %+v, want 6832.00 across 1 jurisdiction", stored.Summary)
	}

	vda, err := svc.analyses.ModelVDA(ctx, a.ID, VDARequest{SelectedJurisdictions: []string{"co", "CO"}})
	if err != nil {
		t.Fatalf("ModelVDA: %v", err)
	}
	if len(vda.Breakdown) != 1 || !vda.TotalSavings.Equal(mustDecimal("560")) || !vda.AfterTotal.Equal(mustDecimal("6272")) {
		t.Errorf("vda = %+v, want penalties of 560 waived", vda.VDAScenario)
	}

	logs, total, err := svc.audit.GetAuditLogs(ctx, a.ID, 1, 50)
	if err != nil {
		t.Fatalf("GetAuditLogs: %v", err)
	}
	// create, import, manual run, run after the physical edit
	if total != 4 || len(logs) != 4 {
		t.Errorf("audit entries for analysis = %d, want 4", total)
	}
	if len(logs) > 0 && logs[0].UserID != userID {
		t.Errorf("audit user = %q, want %q", logs[0].UserID, userID)
	}

	if _, err := svc.physical.Delete(ctx, a.ID, mutation.Fact.ID, userID); err != nil {
		t.Fatalf("physical Delete: %v", err)
	}
	stored, err = svc.analyses.GetResults(ctx, a.ID, "")
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if stored.Results[0].Status != "none" {
		t.Errorf("status after delete = %s, want none", stored.Results[0].Status)
	}
}

func TestPortfolioStatistics(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)
	seedRules(t, svc.rules, "CO")

	a, err := svc.analyses.CreateAnalysis(ctx, CreateAnalysisRequest{ClientName: "Acme", AsOfDate: "2023-12-31"}, "")
	if err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}
	if _, err := svc.analyses.ImportTransactions(ctx, a.ID, ImportTransactionsRequest{Transactions: []TransactionInput{
		{Jurisdiction: "CO", Date: "2022-03-01", GrossAmount: "80000", Channel: "direct"},
	}}, ""); err != nil {
		t.Fatalf("ImportTransactions: %v", err)
	}
	if _, err := svc.physical.Create(ctx, a.ID, PhysicalNexusInput{Jurisdiction: "CO", StartDate: "2021-01-01"}, ""); err != nil {
		t.Fatalf("physical Create: %v", err)
	}
	if _, err := svc.analyses.CreateAnalysis(ctx, CreateAnalysisRequest{ClientName: "Globex", AsOfDate: "2024-06-30"}, ""); err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}

	all, err := svc.stats.GetStatistics(ctx, "", "")
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if all.TotalAnalyses != 2 || all.CalculatedAnalyses != 1 {
		t.Errorf("analyses = %d (%d calculated), want 2 (1 calculated)", all.TotalAnalyses, all.CalculatedAnalyses)
	}
	if all.TotalLiability != "6832.00" || all.NexusResults != 1 {
		t.Errorf("exposure = %s over %d results, want 6832.00 over 1", all.TotalLiability, all.NexusResults)
	}
	if len(all.TopJurisdictions) != 1 || all.TopJurisdictions[0].Jurisdiction != "CO" || all.TopJurisdictions[0].TotalLiability != "6832.00" {
		t.Errorf("top jurisdictions = %+v, want CO at 6832.00", all.TopJurisdictions)
	}

	later, err := svc.stats.GetStatistics(ctx, "2024-01-01", "")
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if later.TotalAnalyses != 1 || later.TotalLiability != "0.00" || len(later.TopJurisdictions) != 0 {
		t.Errorf("2024 onward = %+v, want only the uncalculated analysis", later)
	}

	if _, err := svc.stats.GetStatistics(ctx, "2024-01-01", "2023-01-01"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("inverted range error = %v, want ErrInvalidInput", err)
	}
}

func TestPhysicalNexusEditRollsBackOnMissingAnalysis(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	_, err := svc.physical.Create(ctx, "8d7c6b5a-0000-4000-8000-000000000000", PhysicalNexusInput{Jurisdiction: "TX", StartDate: "2021-01-01"}, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Create error = %v, want ErrNotFound", err)
	}
	var n int64
	if err := svc.db.Model(&model.PhysicalNexusFact{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("facts after failed edit = %d, want 0", n)
	}
	if svc.publisher.count() != 0 {
		t.Errorf("events = %d, want none", svc.publisher.count())
	}
}

func TestImportRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	a, err := svc.analyses.CreateAnalysis(ctx, CreateAnalysisRequest{ClientName: "Acme", AsOfDate: "2023-12-31"}, "")
	if err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}

	tests := []struct {
		name string
		in   TransactionInput
	}{
		{"unknown jurisdiction", TransactionInput{Jurisdiction: "ZZ", Date: "2022-01-01", GrossAmount: "10", Channel: "direct"}},
		{"bad date", TransactionInput{Jurisdiction: "TX", Date: "01/02/2022", GrossAmount: "10", Channel: "direct"}},
		{"negative exempt", TransactionInput{Jurisdiction: "TX", Date: "2022-01-01", GrossAmount: "10", ExemptAmount: "-1", Channel: "direct"}},
		{"unknown channel", TransactionInput{Jurisdiction: "TX", Date: "2022-01-01", GrossAmount: "10", Channel: "wholesale"}},
	}
	for _, tt := range tests {
		good := TransactionInput{Jurisdiction: "TX", Date: "2022-01-01", GrossAmount: "10", Channel: "direct"}
		_, err := svc.analyses.ImportTransactions(ctx, a.ID, ImportTransactionsRequest{Transactions: []TransactionInput{good, tt.in}}, "")
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: error = %v, want ErrInvalidInput", tt.name, err)
		}
	}

	got, err := svc.analyses.GetAnalysis(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.TransactionCount == nil || *got.TransactionCount != 0 {
		t.Errorf("transaction count = %v, want 0", got.TransactionCount)
	}
}

func TestRuleVersioning(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	first, err := svc.rules.CreateTaxRateRule(ctx, TaxRateRuleRequest{
		RuleWindowRequest: RuleWindowRequest{Jurisdiction: "WA", EffectiveFrom: "2019-01-01"},
		StateRate:         "0.065",
	}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	next := TaxRateRuleRequest{
		RuleWindowRequest: RuleWindowRequest{Jurisdiction: "WA", EffectiveFrom: "2022-01-01"},
		StateRate:         "0.065",
		AvgLocalRate:      "0.0275",
	}
	if _, err := svc.rules.CreateTaxRateRule(ctx, next, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("overlapping create error = %v, want ErrConflict", err)
	}

	if err := svc.rules.CloseRule(ctx, nexus.KindTaxRate, first.ID, CloseRuleRequest{EffectiveTo: "2018-06-01"}, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("close before start error = %v, want ErrInvalidInput", err)
	}
	if err := svc.rules.CloseRule(ctx, nexus.KindTaxRate, first.ID, CloseRuleRequest{EffectiveTo: "2022-01-01"}, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.rules.CreateTaxRateRule(ctx, next, ""); err != nil {
		t.Fatalf("create after close: %v", err)
	}

	list, err := svc.rules.ListTaxRateRules(ctx, "wa")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[1].CombinedRate != "0.0925" {
		t.Errorf("rules = %+v, want two versions ending at 0.0925", list)
	}

	tables, err := svc.rules.LoadRuleTables(ctx)
	if err != nil {
		t.Fatalf("LoadRuleTables: %v", err)
	}
	if len(tables.TaxRates) != 2 {
		t.Errorf("loaded tax rates = %d, want 2", len(tables.TaxRates))
	}

	if err := svc.rules.DeleteRule(ctx, nexus.KindTaxRate, first.ID, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.rules.DeleteRule(ctx, nexus.KindTaxRate, first.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
	if err := svc.rules.DeleteRule(ctx, nexus.RuleKind("nope"), first.ID, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown kind error = %v, want ErrInvalidInput", err)
	}
}

func TestInterestPenaltyRequestValidation(t *testing.T) {
	base := InterestPenaltyRuleRequest{
		RuleWindowRequest:  RuleWindowRequest{Jurisdiction: "NY", EffectiveFrom: "2020-01-01"},
		AnnualInterestRate: "0.075",
		Compounding:        "compound_daily",
		PenaltyRate:        "0.10",
		PenaltyBasis:       "tax_plus_interest",
	}

	m, err := base.toModel()
	if err != nil {
		t.Fatalf("toModel: %v", err)
	}
	if m.FilingFrequency != "annual" {
		t.Errorf("default filing frequency = %q, want annual", m.FilingFrequency)
	}

	months := -1
	tests := []struct {
		name   string
		mutate func(*InterestPenaltyRuleRequest)
	}{
		{"rate above one", func(r *InterestPenaltyRuleRequest) { r.AnnualInterestRate = "1.5" }},
		{"compounding", func(r *InterestPenaltyRuleRequest) { r.Compounding = "continuous" }},
		{"filing frequency", func(r *InterestPenaltyRuleRequest) { r.FilingFrequency = "weekly" }},
		{"basis", func(r *InterestPenaltyRuleRequest) { r.PenaltyBasis = "sales" }},
		{"min above max", func(r *InterestPenaltyRuleRequest) { r.PenaltyMin, r.PenaltyMax = "100", "50" }},
		{"negative lookback", func(r *InterestPenaltyRuleRequest) { r.VDALookbackMonths = &months }},
		{"empty window", func(r *InterestPenaltyRuleRequest) { r.EffectiveTo = "2020-01-01" }},
	}
	for _, tt := range tests {
		req := base
		tt.mutate(&req)
		if _, err := req.toModel(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: error = %v, want ErrInvalidInput", tt.name, err)
		}
	}
}

func TestDecodeSnapshot(t *testing.T) {
	const doc = `{
		"as_of": "2023-12-31",
		"transactions": [
			{"jurisdiction": "tx", "date": "2022-02-01", "gross_amount": "600000", "channel": "direct"}
		],
		"physical_facts": [],
		"rules": {
			"thresholds": [{"jurisdiction": "TX", "effective_from": "2019-10-01", "revenue_threshold": "500000",
				"operator": "or", "lookback": "previous or current calendar year"}],
			"marketplace": [{"jurisdiction": "TX", "effective_from": "2019-10-01", "counts_toward_threshold": true}],
			"tax_rates": [{"jurisdiction": "TX", "effective_from": "2019-10-01", "state_rate": "0.0625", "avg_local_rate": "0.0195"}],
			"interest_penalty": []
		}
	}`

	snap, err := DecodeSnapshot(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].Jurisdiction != "TX" {
		t.Errorf("transactions = %+v, want one TX sale", snap.Transactions)
	}
	if len(snap.Rules.Thresholds) != 1 || snap.Rules.Thresholds[0].RevenueThreshold == nil {
		t.Errorf("thresholds = %+v, want one revenue threshold", snap.Rules.Thresholds)
	}
	if snap.AsOf.Year() != 2023 {
		t.Errorf("as of = %v, want 2023-12-31", snap.AsOf)
	}

	if _, err := DecodeSnapshot(strings.NewReader(`{"as_of": "2023-12-31", "extra": 1}`)); err == nil {
		t.Error("DecodeSnapshot accepted an unknown field")
	}
	if _, err := DecodeSnapshot(strings.NewReader(`{"as_of": "12/31/2023"}`)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad as_of error = %v, want ErrInvalidInput", err)
	}
}

func TestResultModelRoundTrip(t *testing.T) {
	year := 2021
	pct := mustDecimal("87.5")
	in := nexus.StateYearResult{
		Jurisdiction:     "GA",
		Year:             2022,
		Status:           nexus.StatusIndeterminate,
		FirstNexusYear:   &year,
		ThresholdPercent: &pct,
		GrossSales:       mustDecimal("10"),
		Issues:           []nexus.Issue{{Code: nexus.ReasonIndeterminateThreshold, Message: "count unknown"}},
	}

	out := resultFromModel(resultToModel(uuid.New(), in))
	if out.Status != in.Status || out.ThresholdPercent == nil || !out.ThresholdPercent.Equal(pct) {
		t.Errorf("round trip = %+v, want status and percent preserved", out)
	}
	if len(out.Issues) != 1 || out.Issues[0].Code != nexus.ReasonIndeterminateThreshold {
		t.Errorf("issues = %+v, want the indeterminate reason", out.Issues)
	}
	if out.TotalLiability.Valid {
		t.Error("total liability became valid")
	}
}
