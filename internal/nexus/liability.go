package nexus

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Liability is the computed exposure for one jurisdiction-year.
type Liability struct {
	LiableSales  decimal.Decimal
	CombinedRate decimal.NullDecimal
	Tax          decimal.Decimal
	Interest     decimal.Decimal
	Penalty      decimal.Decimal
}

// Total is tax plus interest plus penalty.
func (l Liability) Total() decimal.Decimal {
	return l.Tax.Add(l.Interest).Add(l.Penalty)
}

// LiabilityInput gathers what the calculator needs for one year.
type LiabilityInput struct {
	Ledger          *Ledger
	Year            int
	ObligationStart time.Time
	AsOf            time.Time
	Marketplace     MarketplaceRule
	TaxRates        *RuleResolver[TaxRateRule]
	InterestPenalty InterestPenaltyRule
}

// ComputeLiability prices the year's taxable sales dated on or after the
// obligation start. The tax rate is resolved per transaction date, interest
// accrues per filing period from the later of period end and obligation
// start, and the penalty is applied to the year's totals. Any missing rate
// version fails the whole year rather than producing a partial figure.
func ComputeLiability(in LiabilityInput) (Liability, error) {
	out := Liability{
		LiableSales: decimal.Zero,
		Tax:         decimal.Zero,
		Interest:    decimal.Zero,
		Penalty:     decimal.Zero,
	}

	start := day(in.ObligationStart)
	if start.Before(yearStart(in.Year)) {
		start = yearStart(in.Year)
	}
	if start.After(yearEnd(in.Year)) {
		return out, nil
	}

	rule := in.InterestPenalty
	periodTax := map[time.Time]decimal.Decimal{}
	for _, tx := range in.Ledger.Between(start, yearEnd(in.Year)) {
		if tx.Channel == ChannelMarketplace && in.Marketplace.ExcludedFromLiability {
			continue
		}
		rate, err := in.TaxRates.Resolve(in.Ledger.Jurisdiction, tx.Date)
		if err != nil {
			return Liability{}, err
		}
		combined := rate.CombinedRate()
		out.CombinedRate = nullDecimal(combined)

		taxable := tx.Taxable()
		out.LiableSales = out.LiableSales.Add(taxable)
		pe := periodEnd(tx.Date, rule.FilingFrequency)
		periodTax[pe] = periodTax[pe].Add(taxable.Mul(combined))
	}

	periods := make([]time.Time, 0, len(periodTax))
	for pe := range periodTax {
		periods = append(periods, pe)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	tax, interest := decimal.Zero, decimal.Zero
	for _, pe := range periods {
		amount := periodTax[pe]
		tax = tax.Add(amount)
		accrueFrom := pe
		if start.After(accrueFrom) {
			accrueFrom = start
		}
		if amount.IsPositive() {
			interest = interest.Add(AccruedInterest(amount, rule.AnnualInterestRate, rule.Compounding, accrueFrom, in.AsOf))
		}
	}

	out.Tax = tax.Round(2)
	out.Interest = interest.Round(2)
	out.Penalty = PenaltyFor(out.Tax, out.Interest, rule).Round(2)
	return out, nil
}
