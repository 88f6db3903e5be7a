package nexus

import (
	"errors"
	"testing"
)

func liabilityInput(code string, txns []Transaction, obligation, asOf string) LiabilityInput {
	rules := standardRules(code)
	return LiabilityInput{
		Ledger:          NewLedger(code, txns),
		Year:            2022,
		ObligationStart: date(obligation),
		AsOf:            date(asOf),
		Marketplace:     rules.Marketplace[0],
		TaxRates:        NewRuleResolver(KindTaxRate, rules.TaxRates),
		InterestPenalty: rules.InterestPenalty[0],
	}
}

func TestComputeLiabilityFromObligationStart(t *testing.T) {
	exempt := sale("PA", "2022-09-01", "5000", ChannelDirect)
	exempt.ExemptAmount = dec("1000")
	txns := []Transaction{
		sale("PA", "2022-03-01", "10000", ChannelDirect),
		sale("PA", "2022-07-15", "20000", ChannelMarketplace),
		exempt,
	}

	tests := []struct {
		name        string
		excluded    bool
		liable      string
		tax         string
		interest    string
		penalty     string
		totalWanted string
	}{
		{"marketplace taxed", false, "24000", "1680.00", "201.60", "168.00", "2049.60"},
		{"marketplace excluded", true, "4000", "280.00", "33.60", "28.00", "341.60"},
	}

	for _, tt := range tests {
		in := liabilityInput("PA", txns, "2022-06-01", "2023-12-31")
		in.Marketplace.ExcludedFromLiability = tt.excluded

		got, err := ComputeLiability(in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if !got.LiableSales.Equal(dec(tt.liable)) {
			t.Errorf("%s: liable sales = %s, want %s", tt.name, got.LiableSales, tt.liable)
		}
		if !got.Tax.Equal(dec(tt.tax)) || !got.Interest.Equal(dec(tt.interest)) || !got.Penalty.Equal(dec(tt.penalty)) {
			t.Errorf("%s: tax/interest/penalty = %s/%s/%s, want %s/%s/%s",
				tt.name, got.Tax, got.Interest, got.Penalty, tt.tax, tt.interest, tt.penalty)
		}
		if !got.Total().Equal(dec(tt.totalWanted)) {
			t.Errorf("%s: total = %s, want %s", tt.name, got.Total(), tt.totalWanted)
		}
	}
}

func TestComputeLiabilityRateChangeMidYear(t *testing.T) {
	in := liabilityInput("KS", []Transaction{
		sale("KS", "2022-03-01", "1000", ChannelDirect),
		sale("KS", "2022-09-01", "1000", ChannelDirect),
	}, "2022-01-01", "2022-12-31")
	in.TaxRates = NewRuleResolver(KindTaxRate, []TaxRateRule{
		{Jurisdiction: "KS", StateRate: dec("0.05"), AvgLocalRate: dec("0"),
			Period: Period{EffectiveFrom: date("2018-01-01"), EffectiveTo: datePtr("2022-07-01")}},
		{Jurisdiction: "KS", StateRate: dec("0.08"), AvgLocalRate: dec("0"),
			Period: Period{EffectiveFrom: date("2022-07-01")}},
	})

	got, err := ComputeLiability(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Tax.Equal(dec("130")) {
		t.Errorf("tax = %s, want 130", got.Tax)
	}
	// annual return is not yet past due on Dec 31
	if !got.Interest.IsZero() {
		t.Errorf("interest = %s, want 0", got.Interest)
	}
}

func TestComputeLiabilityMonthlyFiling(t *testing.T) {
	in := liabilityInput("OK", []Transaction{sale("OK", "2022-11-15", "10000", ChannelDirect)}, "2022-01-01", "2022-12-30")
	in.InterestPenalty.FilingFrequency = FilingMonthly

	got, err := ComputeLiability(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 700 tax accruing 12% simple from Nov 30 to Dec 30
	if !got.Interest.Equal(dec("6.90")) {
		t.Errorf("interest = %s, want 6.90", got.Interest)
	}
}

func TestComputeLiabilityMissingRate(t *testing.T) {
	in := liabilityInput("NE", []Transaction{sale("NE", "2022-03-01", "1000", ChannelDirect)}, "2022-01-01", "2023-12-31")
	in.TaxRates = NewRuleResolver(KindTaxRate, []TaxRateRule{})

	if _, err := ComputeLiability(in); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("error = %v, want ErrRuleNotFound", err)
	}
}

func TestComputeLiabilityObligationAfterYear(t *testing.T) {
	in := liabilityInput("SD", []Transaction{sale("SD", "2022-03-01", "1000", ChannelDirect)}, "2023-02-01", "2023-12-31")

	got, err := ComputeLiability(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Total().IsZero() || got.CombinedRate.Valid {
		t.Errorf("liability = %+v, want zero with no rate", got)
	}
}
