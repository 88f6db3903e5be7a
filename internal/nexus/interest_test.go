package nexus

import (
	"testing"
)

func TestAccruedInterest(t *testing.T) {
	tests := []struct {
		name   string
		method Compounding
		from   string
		to     string
		want   string
	}{
		{"simple one year", CompoundingSimple, "2022-01-01", "2023-01-01", "1200.00"},
		{"monthly two years", CompoundingMonthly, "2022-01-01", "2024-01-01", "2697.35"},
		{"daily one year", CompoundingDaily, "2022-01-01", "2023-01-01", "1274.75"},
		{"annual with stub", CompoundingAnnually, "2022-01-01", "2023-07-01", "1866.48"},
		{"same day", CompoundingMonthly, "2022-01-01", "2022-01-01", "0"},
		{"backwards", CompoundingSimple, "2023-01-01", "2022-01-01", "0"},
	}

	for _, tt := range tests {
		got := AccruedInterest(dec("10000"), dec("0.12"), tt.method, date(tt.from), date(tt.to)).Round(2)
		if !got.Equal(dec(tt.want)) {
			t.Errorf("%s: interest = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestElapsedPeriods(t *testing.T) {
	n, stub := elapsedPeriods(date("2022-01-31"), date("2022-03-15"), 1)
	// Jan 31 -> Feb 28 is one whole month, Feb 28 -> Mar 15 is 15 of 31 days.
	if n != 1 {
		t.Errorf("whole periods = %d, want 1", n)
	}
	if !stub.Equal(dec("15").Div(dec("31"))) {
		t.Errorf("stub = %s, want 15/31", stub)
	}
}

func TestAddMonthsClampsDay(t *testing.T) {
	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2022-01-31", 1, "2022-02-28"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2022-08-31", 3, "2022-11-30"},
		{"2022-12-15", 2, "2023-02-15"},
	}
	for _, tt := range tests {
		if got := addMonths(date(tt.from), tt.n); !got.Equal(date(tt.want)) {
			t.Errorf("addMonths(%s, %d) = %s, want %s", tt.from, tt.n, got.Format(dateLayout), tt.want)
		}
	}
}

func TestPenaltyFor(t *testing.T) {
	tests := []struct {
		name     string
		tax      string
		interest string
		rule     InterestPenaltyRule
		want     string
	}{
		{"rate on tax", "1000", "100", InterestPenaltyRule{PenaltyRate: dec("0.10"), PenaltyBasis: PenaltyBasisTax}, "100"},
		{"rate on tax plus interest", "1000", "100", InterestPenaltyRule{PenaltyRate: dec("0.10"), PenaltyBasis: PenaltyBasisTaxPlusInterest}, "110"},
		{"minimum", "100", "0", InterestPenaltyRule{PenaltyRate: dec("0.05"), PenaltyMin: decPtr("50"), PenaltyBasis: PenaltyBasisTax}, "50"},
		{"maximum", "100000", "0", InterestPenaltyRule{PenaltyRate: dec("0.25"), PenaltyMax: decPtr("5000"), PenaltyBasis: PenaltyBasisTax}, "5000"},
		{"no tax no minimum", "0", "0", InterestPenaltyRule{PenaltyRate: dec("0.05"), PenaltyMin: decPtr("50"), PenaltyBasis: PenaltyBasisTax}, "0"},
		{"refund year", "-20", "0", InterestPenaltyRule{PenaltyRate: dec("0.05"), PenaltyBasis: PenaltyBasisTax}, "0"},
	}
	for _, tt := range tests {
		got := PenaltyFor(dec(tt.tax), dec(tt.interest), tt.rule)
		if !got.Equal(dec(tt.want)) {
			t.Errorf("%s: penalty = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestPeriodEnd(t *testing.T) {
	tests := []struct {
		on   string
		freq FilingFrequency
		want string
	}{
		{"2022-02-10", FilingMonthly, "2022-02-28"},
		{"2024-02-10", FilingMonthly, "2024-02-29"},
		{"2022-05-10", FilingQuarterly, "2022-06-30"},
		{"2022-12-31", FilingQuarterly, "2022-12-31"},
		{"2022-01-01", FilingAnnual, "2022-12-31"},
	}
	for _, tt := range tests {
		if got := periodEnd(date(tt.on), tt.freq); !got.Equal(date(tt.want)) {
			t.Errorf("periodEnd(%s, %s) = %s, want %s", tt.on, tt.freq, got.Format(dateLayout), tt.want)
		}
	}
}
