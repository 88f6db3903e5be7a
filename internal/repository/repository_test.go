package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"taxnexus/internal/database"
	"taxnexus/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	// every pooled connection would get its own in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func dayPtr(s string) *time.Time {
	d := day(s)
	return &d
}

func TestRuleRepositoryFindOverlapping(t *testing.T) {
	ctx := context.Background()
	repo := NewRuleRepository[model.TaxRateRule](newTestDB(t))

	first := model.TaxRateRule{StateRate: decimal.RequireFromString("0.0725"), AvgLocalRate: decimal.Zero,
		RuleWindow: model.RuleWindow{Jurisdiction: "CA", EffectiveFrom: day("2019-01-01"), EffectiveTo: dayPtr("2021-01-01")}}
	second := model.TaxRateRule{StateRate: decimal.RequireFromString("0.0725"), AvgLocalRate: decimal.RequireFromString("0.01"),
		RuleWindow: model.RuleWindow{Jurisdiction: "CA", EffectiveFrom: day("2021-01-01")}}
	other := model.TaxRateRule{StateRate: decimal.RequireFromString("0.0625"), AvgLocalRate: decimal.Zero,
		RuleWindow: model.RuleWindow{Jurisdiction: "TX", EffectiveFrom: day("2015-01-01")}}
	for _, r := range []*model.TaxRateRule{&first, &second, &other} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	tests := []struct {
		name    string
		from    string
		to      *time.Time
		exclude *uuid.UUID
		want    int64
	}{
		{"inside first", "2020-06-01", dayPtr("2020-09-01"), nil, 1},
		{"open ended from 2020", "2020-06-01", nil, nil, 2},
		{"ends where first starts", "2018-01-01", dayPtr("2019-01-01"), nil, 0},
		{"replacing second", "2021-01-01", nil, &second.ID, 0},
	}
	for _, tt := range tests {
		got, err := repo.FindOverlapping(ctx, "CA", day(tt.from), tt.to, tt.exclude)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: FindOverlapping = %d, want %d", tt.name, got, tt.want)
		}
	}

	list, err := repo.List(ctx, "CA")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || !list[0].EffectiveFrom.Equal(day("2019-01-01")) {
		t.Errorf("List(CA) = %d rows, want 2 ordered by effective_from", len(list))
	}
}

func TestResultRepositoryReplace(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewResultRepository(db)
	txm := NewTransactionManager(db)
	analysisID := uuid.New()

	rows := func(status string, years ...int) []model.StateYearResult {
		var out []model.StateYearResult
		for _, y := range years {
			out = append(out, model.StateYearResult{
				AnalysisID: analysisID, Jurisdiction: "WA", Year: y, Status: status,
				GrossSales: decimal.Zero, TaxableSales: decimal.Zero, ExemptSales: decimal.Zero,
				MarketplaceSales: decimal.Zero, DirectSales: decimal.Zero, Issues: "[]",
			})
		}
		return out
	}

	for _, set := range [][]model.StateYearResult{rows("none", 2020, 2021, 2022), rows("economic", 2022)} {
		err := txm.RunInTx(ctx, func(txCtx context.Context) error {
			return repo.ReplaceForAnalysis(txCtx, analysisID, set)
		})
		if err != nil {
			t.Fatalf("replace: %v", err)
		}
	}

	got, err := repo.ListByAnalysis(ctx, analysisID, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Status != "economic" {
		t.Errorf("results after replace = %+v, want the single economic row", got)
	}
}

func TestTransactionManagerRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAnalysisRepository(db)
	txm := NewTransactionManager(db)

	boom := errors.New("boom")
	err := txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, &model.Analysis{ClientName: "Acme", AsOfDate: day("2023-12-31")}); err != nil {
			return err
		}
		// nested call joins the outer transaction
		return txm.RunInTx(txCtx, func(context.Context) error { return boom })
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx error = %v, want boom", err)
	}

	_, total, err := repo.List(ctx, 1, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 {
		t.Errorf("analyses after rollback = %d, want 0", total)
	}
}

func TestAnalysisDeleteRemovesChildren(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	analyses := NewAnalysisRepository(db)
	txns := NewSalesTransactionRepository(db)

	a := &model.Analysis{ClientName: "Acme", AsOfDate: day("2023-12-31"), Status: model.AnalysisStatusDraft}
	if err := analyses.Create(ctx, a); err != nil {
		t.Fatalf("create analysis: %v", err)
	}
	err := txns.CreateBatch(ctx, []model.SalesTransaction{
		{AnalysisID: a.ID, Jurisdiction: "NY", TransactionDate: day("2022-05-01"), GrossAmount: decimal.RequireFromString("1234.56"), ExemptAmount: decimal.Zero, Channel: "direct"},
		{AnalysisID: a.ID, Jurisdiction: "CA", TransactionDate: day("2022-01-01"), GrossAmount: decimal.RequireFromString("10"), ExemptAmount: decimal.Zero, Channel: "marketplace"},
	})
	if err != nil {
		t.Fatalf("create transactions: %v", err)
	}

	list, err := txns.ListByAnalysis(ctx, a.ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(list) != 2 || list[0].Jurisdiction != "CA" {
		t.Fatalf("transactions = %+v, want CA first", list)
	}
	if !list[1].GrossAmount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("gross amount = %s, want 1234.56", list[1].GrossAmount)
	}

	if err := analyses.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := analyses.FindByID(ctx, a.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("FindByID after delete = %v, want record not found", err)
	}
	if n, _ := txns.CountByAnalysis(ctx, a.ID); n != 0 {
		t.Errorf("transactions after delete = %d, want 0", n)
	}
}
