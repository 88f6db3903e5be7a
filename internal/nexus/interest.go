package nexus

import (
	"time"

	"github.com/shopspring/decimal"
)

// interestPrecision bounds intermediate digits in compounding so repeated
// multiplication does not grow without limit.
const interestPrecision = 24

var (
	one           = decimal.NewFromInt(1)
	daysPerYear   = decimal.NewFromInt(365)
	monthsPerYear = decimal.NewFromInt(12)
)

// AccruedInterest returns unrounded interest on principal from one date to
// another. Compound methods apply the compound formula for whole periods
// and simple interest on the accumulated balance for the remaining part of
// a period.
func AccruedInterest(principal, annualRate decimal.Decimal, method Compounding, from, to time.Time) decimal.Decimal {
	from, to = day(from), day(to)
	if !to.After(from) || principal.IsZero() || annualRate.IsZero() {
		return decimal.Zero
	}

	switch method {
	case CompoundingMonthly:
		n, stub := elapsedPeriods(from, to, 1)
		return compound(principal, annualRate.Div(monthsPerYear), n, stub)
	case CompoundingAnnually:
		n, stub := elapsedPeriods(from, to, 12)
		return compound(principal, annualRate, n, stub)
	case CompoundingDaily:
		days := daysBetween(from, to)
		return compound(principal, annualRate.Div(daysPerYear), days, decimal.Zero)
	default:
		years := decimal.NewFromInt(daysBetween(from, to)).Div(daysPerYear)
		return principal.Mul(annualRate).Mul(years)
	}
}

// compound returns principal * ((1+r)^n * (1 + r*stub) - 1).
func compound(principal, periodRate decimal.Decimal, n int64, stub decimal.Decimal) decimal.Decimal {
	factor := powInt(one.Add(periodRate), n)
	if !stub.IsZero() {
		factor = factor.Mul(one.Add(periodRate.Mul(stub))).Round(interestPrecision)
	}
	return principal.Mul(factor.Sub(one))
}

// powInt raises base to a non-negative integer power by squaring.
func powInt(base decimal.Decimal, n int64) decimal.Decimal {
	result := one
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Round(interestPrecision)
		}
		base = base.Mul(base).Round(interestPrecision)
		n >>= 1
	}
	return result
}

// elapsedPeriods counts whole periods of the given month length between two
// dates plus the fraction of the next period that has elapsed.
func elapsedPeriods(from, to time.Time, monthsPerPeriod int) (int64, decimal.Decimal) {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	n := months / monthsPerPeriod
	for n > 0 && addMonths(from, n*monthsPerPeriod).After(to) {
		n--
	}
	anniversary := addMonths(from, n*monthsPerPeriod)
	next := addMonths(from, (n+1)*monthsPerPeriod)
	rest := daysBetween(anniversary, to)
	if rest == 0 {
		return int64(n), decimal.Zero
	}
	return int64(n), decimal.NewFromInt(rest).Div(decimal.NewFromInt(daysBetween(anniversary, next)))
}

// addMonths moves t by n months, clamping the day to the target month's
// length so Jan 31 + 1 month is Feb 28 or 29.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	d := t.Day()
	if last := daysIn(first.Month(), first.Year()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int64 {
	return int64(day(to).Sub(day(from)).Hours() / 24)
}

// PenaltyFor applies the penalty rate to the configured basis and clamps
// to the bounds that are set. A non-positive basis carries no penalty.
func PenaltyFor(tax, interest decimal.Decimal, rule InterestPenaltyRule) decimal.Decimal {
	basis := tax
	if rule.PenaltyBasis == PenaltyBasisTaxPlusInterest {
		basis = tax.Add(interest)
	}
	if !basis.IsPositive() {
		return decimal.Zero
	}
	p := basis.Mul(rule.PenaltyRate)
	if rule.PenaltyMin != nil && p.LessThan(*rule.PenaltyMin) {
		p = *rule.PenaltyMin
	}
	if rule.PenaltyMax != nil && p.GreaterThan(*rule.PenaltyMax) {
		p = *rule.PenaltyMax
	}
	return p
}

// periodEnd returns the last day of the filing period containing d.
func periodEnd(d time.Time, freq FilingFrequency) time.Time {
	switch freq {
	case FilingMonthly:
		return time.Date(d.Year(), d.Month(), daysIn(d.Month(), d.Year()), 0, 0, 0, 0, time.UTC)
	case FilingQuarterly:
		q := (int(d.Month()) - 1) / 3
		return quarterEnds(d.Year())[q]
	default:
		return yearEnd(d.Year())
	}
}
