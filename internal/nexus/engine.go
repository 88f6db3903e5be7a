package nexus

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidInput is returned when a snapshot breaks the input contract.
var ErrInvalidInput = errors.New("invalid engine input")

// DefaultApproachingRatio flags sales at 85% of a threshold.
var DefaultApproachingRatio = decimal.RequireFromString("0.85")

// Options tune a run. The zero value uses the defaults.
type Options struct {
	ApproachingRatio decimal.Decimal
	// Workers bounds how many jurisdictions are computed at once.
	Workers int
}

// Snapshot is the immutable input of one run. All data must be fully
// materialized; the engine performs no I/O.
type Snapshot struct {
	AsOf          time.Time           `json:"as_of"`
	Transactions  []Transaction       `json:"transactions"`
	PhysicalFacts []PhysicalNexusFact `json:"physical_facts"`
	Rules         RuleTables          `json:"rules"`
}

// Analysis is the output of one run.
type Analysis struct {
	AsOf    time.Time         `json:"as_of"`
	Results []StateYearResult `json:"results"`
	Summary Summary           `json:"summary"`
	// Rules is the validated index the results were computed from; the VDA
	// modeler reuses it.
	Rules *RuleSet `json:"-"`
}

// Engine runs nexus determination and liability calculation. It holds no
// state between runs and is safe for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine returns an engine with defaults filled in.
func NewEngine(opts Options) *Engine {
	if opts.ApproachingRatio.IsZero() {
		opts.ApproachingRatio = DefaultApproachingRatio
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Engine{opts: opts}
}

// Run computes one StateYearResult per jurisdiction and year. Jurisdictions
// are independent and computed in parallel; years within a jurisdiction are
// processed in ascending order. Errors tied to a jurisdiction are attached to
// its results; only a malformed snapshot fails the run.
func (e *Engine) Run(snap Snapshot) (*Analysis, error) {
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}
	asOf := day(snap.AsOf)

	// Activity dated after the as-of date is not yet known to the analysis.
	firstYear := 0
	txnsBy := map[string][]Transaction{}
	for _, tx := range snap.Transactions {
		if day(tx.Date).After(asOf) {
			continue
		}
		if y := tx.Date.Year(); firstYear == 0 || y < firstYear {
			firstYear = y
		}
		txnsBy[tx.Jurisdiction] = append(txnsBy[tx.Jurisdiction], tx)
	}
	factsBy := map[string][]PhysicalNexusFact{}
	for _, f := range snap.PhysicalFacts {
		if day(f.StartDate).After(asOf) {
			continue
		}
		factsBy[f.Jurisdiction] = append(factsBy[f.Jurisdiction], f)
	}

	codes := make([]string, 0, len(txnsBy)+len(factsBy))
	for code := range txnsBy {
		codes = append(codes, code)
	}
	for code := range factsBy {
		if _, ok := txnsBy[code]; !ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	rules := NewRuleSet(snap.Rules)
	perJurisdiction := make([][]StateYearResult, len(codes))

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, code := range codes {
		i, code := i, code
		g.Go(func() error {
			ledger := NewLedger(code, txnsBy[code])
			years := analysisYears(ledger, factsBy[code], firstYear, asOf)
			perJurisdiction[i] = e.evaluateJurisdiction(ledger, years, factsBy[code], rules, asOf)
			return nil
		})
	}
	_ = g.Wait()

	var results []StateYearResult
	for _, rs := range perJurisdiction {
		results = append(results, rs...)
	}
	return &Analysis{AsOf: asOf, Results: results, Summary: Summarize(results), Rules: rules}, nil
}

// ModelVDA prices a VDA scenario against this analysis.
func (a *Analysis) ModelVDA(selected []string) VDAScenario {
	return ModelVDA(a.Results, a.Rules, selected, a.AsOf)
}

// analysisYears lists the years reported for one jurisdiction. Years with
// sales run from the first to the last sale. A jurisdiction known only
// through physical presence is reported from its earliest presence, but not
// before the snapshot's first sale, through the as-of year.
func analysisYears(ledger *Ledger, facts []PhysicalNexusFact, firstYear int, asOf time.Time) []int {
	years := ledger.Years()
	if len(years) == 0 && len(facts) > 0 {
		from := facts[0].StartDate.Year()
		for _, f := range facts[1:] {
			if y := f.StartDate.Year(); y < from {
				from = y
			}
		}
		if firstYear > from {
			from = firstYear
		}
		for y := from; y <= asOf.Year(); y++ {
			years = append(years, y)
		}
	}
	for len(years) > 0 && years[len(years)-1] > asOf.Year() {
		years = years[:len(years)-1]
	}
	return years
}

// until drops the checkpoints dated after the evaluation date.
func until(points []Checkpoint, evalDate time.Time) []Checkpoint {
	kept := points[:0]
	for _, p := range points {
		if !p.Date.After(evalDate) {
			kept = append(kept, p)
		}
	}
	return kept
}

func (e *Engine) evaluateJurisdiction(ledger *Ledger, years []int, facts []PhysicalNexusFact, rules *RuleSet, asOf time.Time) []StateYearResult {
	code := ledger.Jurisdiction
	results := make([]StateYearResult, 0, len(years))

	if err := rules.Validate(code); err != nil {
		for _, y := range years {
			r := newResult(code, y, ledger.YearTotals(y))
			r.Status = StatusIndeterminate
			r.flag(reasonFor(err), err)
			results = append(results, r)
		}
		return results
	}

	tracker := &Tracker{}
	for _, y := range years {
		r := newResult(code, y, ledger.YearTotals(y))
		evalDate := yearEnd(y)
		if asOf.Year() == y && asOf.Before(evalDate) {
			evalDate = asOf
		}

		obs := YearObservation{Year: y, Economic: Unknown}
		mp, mpErr := rules.Marketplace.Resolve(code, evalDate)
		econErr := mpErr
		if thr, err := rules.Thresholds.Resolve(code, evalDate); err != nil {
			econErr = err
		} else if mpErr == nil {
			lb, lbErr := ParseLookback(thr.Lookback)
			if lbErr != nil {
				r.LookbackAssumptionApplied = true
				r.addIssue(ReasonAmbiguousLookback, lbErr)
			}
			outcome := EvaluateThreshold(until(ledger.Checkpoints(y, lb), evalDate), thr, mp, e.opts.ApproachingRatio)
			r.ThresholdPercent = outcome.Progress
			obs.Economic = outcome.Result
			obs.EconomicDate = outcome.TriggerDate
			obs.Approaching = outcome.Approaching
			obs.GraceDays = thr.GracePeriodDays
			if outcome.Result == Unknown {
				econErr = &IndeterminateThresholdError{Jurisdiction: code, Year: y}
			}
		}
		obs.PhysicalActive, obs.PhysicalDate = physicalPresence(facts, y)

		state := tracker.Step(obs)
		r.Status = state.Status
		r.FirstNexusYear = state.FirstNexusYear
		r.NexusDate = state.NexusDate
		r.ObligationStart = state.ObligationStart

		if econErr != nil {
			if state.Status.HasNexus() {
				r.addIssue(reasonFor(econErr), econErr)
			} else {
				r.flag(reasonFor(econErr), econErr)
			}
		}

		switch {
		case state.Status == StatusIndeterminate:
			// liability stays null; the reason is already attached
		case !state.Status.HasNexus():
			setLiability(&r, Liability{LiableSales: decimal.Zero, Tax: decimal.Zero, Interest: decimal.Zero, Penalty: decimal.Zero})
		default:
			e.priceYear(&r, ledger, rules, mp, mpErr, *state.ObligationStart, evalDate, asOf)
		}
		results = append(results, r)
	}
	return results
}

func (e *Engine) priceYear(r *StateYearResult, ledger *Ledger, rules *RuleSet, mp MarketplaceRule, mpErr error, obligationStart, evalDate, asOf time.Time) {
	if mpErr != nil {
		r.flag(reasonFor(mpErr), mpErr)
		return
	}
	terms, err := rules.InterestPenalty.Resolve(ledger.Jurisdiction, evalDate)
	if err != nil {
		r.flag(reasonFor(err), err)
		return
	}
	l, err := ComputeLiability(LiabilityInput{
		Ledger:          ledger,
		Year:            r.Year,
		ObligationStart: obligationStart,
		AsOf:            asOf,
		Marketplace:     mp,
		TaxRates:        rules.TaxRates,
		InterestPenalty: terms,
	})
	if err != nil {
		r.flag(reasonFor(err), err)
		return
	}
	setLiability(r, l)
}

func setLiability(r *StateYearResult, l Liability) {
	r.LiableSales = nullDecimal(l.LiableSales)
	r.CombinedRate = l.CombinedRate
	r.EstimatedTax = nullDecimal(l.Tax)
	r.Interest = nullDecimal(l.Interest)
	r.Penalties = nullDecimal(l.Penalty)
	r.TotalLiability = nullDecimal(l.Total())
}

func newResult(code string, year int, t Totals) StateYearResult {
	return StateYearResult{
		Jurisdiction:     code,
		Year:             year,
		Status:           StatusNone,
		GrossSales:       t.Gross,
		TaxableSales:     t.Taxable(),
		ExemptSales:      t.Exempt,
		MarketplaceSales: t.Marketplace,
		DirectSales:      t.Direct,
		TransactionCount: t.TransactionCount(),
	}
}

func validateSnapshot(snap Snapshot) error {
	if snap.AsOf.IsZero() {
		return fmt.Errorf("%w: as-of date is required", ErrInvalidInput)
	}
	for i, tx := range snap.Transactions {
		if !ValidJurisdiction(tx.Jurisdiction) {
			return fmt.Errorf("%w: transaction %d: unknown jurisdiction %q", ErrInvalidInput, i, tx.Jurisdiction)
		}
		if tx.Date.IsZero() {
			return fmt.Errorf("%w: transaction %d: missing date", ErrInvalidInput, i)
		}
		if tx.ExemptAmount.IsNegative() {
			return fmt.Errorf("%w: transaction %d: negative exempt amount", ErrInvalidInput, i)
		}
		switch tx.Channel {
		case ChannelDirect, ChannelMarketplace, ChannelOther:
		default:
			return fmt.Errorf("%w: transaction %d: unknown channel %q", ErrInvalidInput, i, tx.Channel)
		}
	}
	for i, f := range snap.PhysicalFacts {
		if !ValidJurisdiction(f.Jurisdiction) {
			return fmt.Errorf("%w: physical fact %d: unknown jurisdiction %q", ErrInvalidInput, i, f.Jurisdiction)
		}
		if f.StartDate.IsZero() {
			return fmt.Errorf("%w: physical fact %d: missing start date", ErrInvalidInput, i)
		}
		if f.EndDate != nil && f.EndDate.Before(f.StartDate) {
			return fmt.Errorf("%w: physical fact %d: end date before start date", ErrInvalidInput, i)
		}
	}
	return nil
}
