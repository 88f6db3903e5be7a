package nexus

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// VDAStateBreakdown compares one jurisdiction's exposure with and without a
// voluntary disclosure agreement. It is a projection of StateYearResult and
// is never stored as ground truth.
type VDAStateBreakdown struct {
	Jurisdiction         string              `json:"jurisdiction"`
	BeforeVDA            decimal.NullDecimal `json:"before_vda"`
	WithVDA              decimal.NullDecimal `json:"with_vda"`
	Savings              decimal.NullDecimal `json:"savings"`
	InterestWaived       decimal.NullDecimal `json:"interest_waived"`
	PenaltiesWaived      decimal.NullDecimal `json:"penalties_waived"`
	YearsCovered         []int               `json:"years_covered"`
	YearsOutsideLookback []int               `json:"years_outside_lookback"`
	NeedsManualReview    bool                `json:"needs_manual_review"`
	Issues               []Issue             `json:"issues,omitempty"`
}

// VDAScenario is the result of pricing a selection of jurisdictions.
type VDAScenario struct {
	TotalSavings decimal.Decimal     `json:"total_savings"`
	BeforeTotal  decimal.Decimal     `json:"before_total"`
	AfterTotal   decimal.Decimal     `json:"after_total"`
	Breakdown    []VDAStateBreakdown `json:"breakdown"`
}

// penaltyWaiverFraction is fixed under the binary VDA model.
var penaltyWaiverFraction = decimal.NewFromInt(1)

// ModelVDA re-prices already computed results for the selected
// jurisdictions. Penalties are waived, interest only where the
// jurisdiction's VDA terms say so, and only for years inside the VDA
// lookback cap; years outside it keep their full liability. Jurisdictions
// with any unpriced nexus year are flagged and left out of the totals.
func ModelVDA(results []StateYearResult, rules *RuleSet, selected []string, asOf time.Time) VDAScenario {
	byJurisdiction := map[string][]StateYearResult{}
	for _, r := range results {
		byJurisdiction[r.Jurisdiction] = append(byJurisdiction[r.Jurisdiction], r)
	}

	codes := dedupe(selected)
	scenario := VDAScenario{
		TotalSavings: decimal.Zero,
		BeforeTotal:  decimal.Zero,
		AfterTotal:   decimal.Zero,
		Breakdown:    make([]VDAStateBreakdown, 0, len(codes)),
	}

	for _, code := range codes {
		b := vdaBreakdown(code, byJurisdiction[code], rules, asOf)
		if b.BeforeVDA.Valid && b.WithVDA.Valid {
			scenario.BeforeTotal = scenario.BeforeTotal.Add(b.BeforeVDA.Decimal)
			scenario.AfterTotal = scenario.AfterTotal.Add(b.WithVDA.Decimal)
			scenario.TotalSavings = scenario.TotalSavings.Add(b.Savings.Decimal)
		}
		scenario.Breakdown = append(scenario.Breakdown, b)
	}
	return scenario
}

func vdaBreakdown(code string, years []StateYearResult, rules *RuleSet, asOf time.Time) VDAStateBreakdown {
	b := VDAStateBreakdown{Jurisdiction: code, YearsCovered: []int{}, YearsOutsideLookback: []int{}}

	terms, err := rules.InterestPenalty.Resolve(code, day(asOf))
	if err != nil {
		b.NeedsManualReview = true
		b.Issues = append(b.Issues, Issue{Code: reasonFor(err), Message: err.Error()})
		return b
	}

	var capStart *time.Time
	if terms.VDALookbackMonths != nil {
		cs := day(asOf).AddDate(0, -*terms.VDALookbackMonths, 0)
		capStart = &cs
	}

	before, after := decimal.Zero, decimal.Zero
	interestWaived, penaltiesWaived := decimal.Zero, decimal.Zero
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })

	for _, r := range years {
		if !r.Status.HasNexus() && r.Status != StatusIndeterminate {
			continue
		}
		if !r.TotalLiability.Valid {
			b.NeedsManualReview = true
			b.Issues = append(b.Issues, Issue{Code: "unpriced_year", Message: code + " has a year without a computed liability"})
			continue
		}
		full := r.TotalLiability.Decimal
		before = before.Add(full)

		if capStart != nil && yearEnd(r.Year).Before(*capStart) {
			b.YearsOutsideLookback = append(b.YearsOutsideLookback, r.Year)
			after = after.Add(full)
			continue
		}
		b.YearsCovered = append(b.YearsCovered, r.Year)

		withVDA := r.EstimatedTax.Decimal
		if terms.VDAInterestWaived {
			interestWaived = interestWaived.Add(r.Interest.Decimal)
		} else {
			withVDA = withVDA.Add(r.Interest.Decimal)
		}
		waived := r.Penalties.Decimal.Mul(penaltyWaiverFraction)
		penaltiesWaived = penaltiesWaived.Add(waived)
		withVDA = withVDA.Add(r.Penalties.Decimal.Sub(waived))
		after = after.Add(withVDA)
	}

	if b.NeedsManualReview {
		return b
	}
	b.BeforeVDA = nullDecimal(before)
	b.WithVDA = nullDecimal(after)
	b.Savings = nullDecimal(before.Sub(after))
	b.InterestWaived = nullDecimal(interestWaived)
	b.PenaltiesWaived = nullDecimal(penaltiesWaived)
	return b
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
