package nexus

import (
	"time"

	"github.com/shopspring/decimal"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func int64Ptr(n int64) *int64 {
	return &n
}

func sale(code, on, gross string, ch Channel) Transaction {
	return Transaction{
		Jurisdiction: code,
		Date:         date(on),
		GrossAmount:  dec(gross),
		ExemptAmount: decimal.Zero,
		Channel:      ch,
	}
}

// standardRules gives a jurisdiction a $100k-or-200 calendar-year test,
// marketplace sales counted and taxed, a 7% combined rate and 12% simple
// interest with a 10% penalty on tax, filed annually.
func standardRules(code string) RuleTables {
	return RuleTables{
		Thresholds: []ThresholdRule{{
			Jurisdiction:         code,
			RevenueThreshold:     decPtr("100000"),
			TransactionThreshold: int64Ptr(200),
			Operator:             OperatorOr,
			Lookback:             "current calendar year",
			Period:               Period{EffectiveFrom: date("2018-01-01")},
		}},
		Marketplace: []MarketplaceRule{{
			Jurisdiction:          code,
			CountsTowardThreshold: true,
			Period:                Period{EffectiveFrom: date("2018-01-01")},
		}},
		TaxRates: []TaxRateRule{{
			Jurisdiction: code,
			StateRate:    dec("0.06"),
			AvgLocalRate: dec("0.01"),
			Period:       Period{EffectiveFrom: date("2018-01-01")},
		}},
		InterestPenalty: []InterestPenaltyRule{{
			Jurisdiction:       code,
			AnnualInterestRate: dec("0.12"),
			Compounding:        CompoundingSimple,
			FilingFrequency:    FilingAnnual,
			PenaltyRate:        dec("0.10"),
			PenaltyBasis:       PenaltyBasisTax,
			Period:             Period{EffectiveFrom: date("2018-01-01")},
		}},
	}
}

func mergeRules(tables ...RuleTables) RuleTables {
	var out RuleTables
	for _, t := range tables {
		out.Thresholds = append(out.Thresholds, t.Thresholds...)
		out.Marketplace = append(out.Marketplace, t.Marketplace...)
		out.TaxRates = append(out.TaxRates, t.TaxRates...)
		out.InterestPenalty = append(out.InterestPenalty, t.InterestPenalty...)
	}
	return out
}

func resultFor(t interface{ Fatalf(string, ...any) }, a *Analysis, code string, year int) StateYearResult {
	for _, r := range a.Results {
		if r.Jurisdiction == code && r.Year == year {
			return r
		}
	}
	t.Fatalf("no result for %s %d", code, year)
	return StateYearResult{}
}

func hasIssue(r StateYearResult, code string) bool {
	for _, i := range r.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}
