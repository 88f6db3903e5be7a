package nexus

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tri is a three-valued truth value.
type Tri int8

const (
	False Tri = iota
	True
	Unknown
)

func (t Tri) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Measures is what a threshold term is evaluated against. A nil Count means
// the data carries no transaction count.
type Measures struct {
	Sales decimal.Decimal
	Count *int64
}

// Term is one condition of a threshold test.
type Term interface {
	Eval(m Measures) Tri
	// Progress is the measured share of the threshold (1 = met). ok is false
	// when the measure is unknown.
	Progress(m Measures) (ratio decimal.Decimal, ok bool)
}

// RevenueTerm is met when sales reach the threshold. Equality counts as met.
type RevenueTerm struct {
	Threshold decimal.Decimal
}

func (t RevenueTerm) Eval(m Measures) Tri {
	if m.Sales.GreaterThanOrEqual(t.Threshold) {
		return True
	}
	return False
}

func (t RevenueTerm) Progress(m Measures) (decimal.Decimal, bool) {
	if !t.Threshold.IsPositive() {
		return decimal.NewFromInt(1), true
	}
	return m.Sales.Div(t.Threshold), true
}

// CountTerm is met when the transaction count reaches the threshold.
type CountTerm struct {
	Threshold int64
}

func (t CountTerm) Eval(m Measures) Tri {
	if m.Count == nil {
		return Unknown
	}
	if *m.Count >= t.Threshold {
		return True
	}
	return False
}

func (t CountTerm) Progress(m Measures) (decimal.Decimal, bool) {
	if m.Count == nil {
		return decimal.Zero, false
	}
	if t.Threshold <= 0 {
		return decimal.NewFromInt(1), true
	}
	return decimal.NewFromInt(*m.Count).Div(decimal.NewFromInt(t.Threshold)), true
}

// Expr combines terms under one operator. Undefined thresholds are simply
// absent terms. An expression with no terms never triggers.
type Expr struct {
	Op    Operator
	Terms []Term
}

// Eval combines the terms with Kleene logic: a known-true term satisfies
// "or" and a known-false term fails "and" even when other terms are unknown.
func (e Expr) Eval(m Measures) Tri {
	if len(e.Terms) == 0 {
		return False
	}
	sawUnknown := false
	for _, term := range e.Terms {
		v := term.Eval(m)
		switch {
		case v == Unknown:
			sawUnknown = true
		case e.Op == OperatorAnd && v == False:
			return False
		case e.Op != OperatorAnd && v == True:
			return True
		}
	}
	if sawUnknown {
		return Unknown
	}
	if e.Op == OperatorAnd {
		return True
	}
	return False
}

// Progress returns how close the measures are to satisfying the
// expression: the best known term under "or", the weakest under "and".
func (e Expr) Progress(m Measures) (decimal.Decimal, bool) {
	best, found := decimal.Zero, false
	for _, term := range e.Terms {
		r, ok := term.Progress(m)
		if !ok {
			continue
		}
		better := r.GreaterThan(best)
		if e.Op == OperatorAnd {
			better = r.LessThan(best)
		}
		if !found || better {
			best, found = r, true
		}
	}
	return best, found
}

// ExprFor builds the expression for a threshold rule version.
func ExprFor(rule ThresholdRule) Expr {
	e := Expr{Op: rule.Operator}
	if rule.RevenueThreshold != nil {
		e.Terms = append(e.Terms, RevenueTerm{Threshold: *rule.RevenueThreshold})
	}
	if rule.TransactionThreshold != nil {
		e.Terms = append(e.Terms, CountTerm{Threshold: *rule.TransactionThreshold})
	}
	return e
}

// TestMeasures derives the threshold-test figures from window totals. When
// the marketplace rule keeps marketplace sales out of the threshold count,
// both their dollars and their transactions are removed. This is a
// different base from the taxable sales used for liability.
func TestMeasures(t Totals, mp MarketplaceRule) Measures {
	sales := t.Gross
	count, aggregated := t.Count, t.Aggregated
	if !mp.CountsTowardThreshold {
		sales = sales.Sub(t.Marketplace)
		count -= t.MarketplaceCount
		aggregated -= t.MarketplaceAggregated
	}
	m := Measures{Sales: sales}
	if aggregated == 0 {
		m.Count = &count
	}
	return m
}

// ThresholdOutcome is the economic nexus verdict for one jurisdiction-year.
type ThresholdOutcome struct {
	Result Tri
	// TriggerDate is the first checkpoint at which the test was met, never
	// earlier than the rule's effective date.
	TriggerDate time.Time
	// Progress is the best known share of the threshold reached in the year.
	Progress    *decimal.Decimal
	Approaching bool
	Rule        ThresholdRule
}

// EvaluateThreshold walks the year's checkpoints in order. The first met
// checkpoint wins. If none is met but some were unknown, the outcome is
// Unknown, never a false negative.
func EvaluateThreshold(checkpoints []Checkpoint, rule ThresholdRule, mp MarketplaceRule, approachingRatio decimal.Decimal) ThresholdOutcome {
	expr := ExprFor(rule)
	out := ThresholdOutcome{Result: False, Rule: rule}
	sawUnknown := false
	var best decimal.Decimal
	haveBest := false

	for _, cp := range checkpoints {
		m := TestMeasures(cp.Totals, mp)
		if r, ok := expr.Progress(m); ok && (!haveBest || r.GreaterThan(best)) {
			best, haveBest = r, true
		}
		switch expr.Eval(m) {
		case True:
			out.Result = True
			out.TriggerDate = cp.Date
			if cp.Date.Before(rule.EffectiveFrom) {
				out.TriggerDate = day(rule.EffectiveFrom)
			}
			out.Progress = progressPercent(best, haveBest)
			return out
		case Unknown:
			sawUnknown = true
		}
	}

	out.Progress = progressPercent(best, haveBest)
	if sawUnknown {
		out.Result = Unknown
		return out
	}
	out.Approaching = haveBest && len(expr.Terms) > 0 && best.GreaterThanOrEqual(approachingRatio)
	return out
}

func progressPercent(ratio decimal.Decimal, ok bool) *decimal.Decimal {
	if !ok {
		return nil
	}
	p := ratio.Mul(decimal.NewFromInt(100)).Round(2)
	return &p
}
