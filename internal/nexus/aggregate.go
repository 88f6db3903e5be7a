package nexus

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Totals are sales sub-totals over a set of transactions. Direct includes
// the "other" channel.
type Totals struct {
	Gross       decimal.Decimal
	Exempt      decimal.Decimal
	Marketplace decimal.Decimal
	Direct      decimal.Decimal
	Count       int64
	// MarketplaceCount counts marketplace rows only.
	MarketplaceCount int64
	// Aggregated and MarketplaceAggregated count pre-summed rows whose sale
	// count is unknown.
	Aggregated            int64
	MarketplaceAggregated int64
}

func zeroTotals() Totals {
	return Totals{
		Gross:       decimal.Zero,
		Exempt:      decimal.Zero,
		Marketplace: decimal.Zero,
		Direct:      decimal.Zero,
	}
}

// Taxable is gross minus exempt.
func (t Totals) Taxable() decimal.Decimal {
	return t.Gross.Sub(t.Exempt)
}

// TransactionCount returns nil when any row in the set is pre-aggregated.
func (t Totals) TransactionCount() *int64 {
	if t.Aggregated > 0 {
		return nil
	}
	n := t.Count
	return &n
}

func (t Totals) add(tx Transaction) Totals {
	t.Gross = t.Gross.Add(tx.GrossAmount)
	t.Exempt = t.Exempt.Add(tx.ExemptAmount)
	t.Count++
	if tx.Aggregated {
		t.Aggregated++
	}
	if tx.Channel == ChannelMarketplace {
		t.Marketplace = t.Marketplace.Add(tx.GrossAmount)
		t.MarketplaceCount++
		if tx.Aggregated {
			t.MarketplaceAggregated++
		}
	} else {
		t.Direct = t.Direct.Add(tx.GrossAmount)
	}
	return t
}

func (t Totals) sub(o Totals) Totals {
	return Totals{
		Gross:                 t.Gross.Sub(o.Gross),
		Exempt:                t.Exempt.Sub(o.Exempt),
		Marketplace:           t.Marketplace.Sub(o.Marketplace),
		Direct:                t.Direct.Sub(o.Direct),
		Count:                 t.Count - o.Count,
		MarketplaceCount:      t.MarketplaceCount - o.MarketplaceCount,
		Aggregated:            t.Aggregated - o.Aggregated,
		MarketplaceAggregated: t.MarketplaceAggregated - o.MarketplaceAggregated,
	}
}

// Ledger is one jurisdiction's transactions in date order with prefix sums,
// so any date window is summed in O(log n).
type Ledger struct {
	Jurisdiction string
	txns         []Transaction
	prefix       []Totals // prefix[i] sums txns[:i]
}

// NewLedger sorts a copy of the jurisdiction's transactions by date. Ties
// keep input order.
func NewLedger(jurisdiction string, txns []Transaction) *Ledger {
	sorted := make([]Transaction, len(txns))
	copy(sorted, txns)
	for i := range sorted {
		sorted[i].Date = day(sorted[i].Date)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	prefix := make([]Totals, len(sorted)+1)
	prefix[0] = zeroTotals()
	for i, tx := range sorted {
		prefix[i+1] = prefix[i].add(tx)
	}
	return &Ledger{Jurisdiction: jurisdiction, txns: sorted, prefix: prefix}
}

// Years lists every calendar year from the first to the last transaction.
func (l *Ledger) Years() []int {
	if len(l.txns) == 0 {
		return nil
	}
	first, last := l.txns[0].Date.Year(), l.txns[len(l.txns)-1].Date.Year()
	years := make([]int, 0, last-first+1)
	for y := first; y <= last; y++ {
		years = append(years, y)
	}
	return years
}

// bounds returns the index range of transactions inside s.
func (l *Ledger) bounds(s span) (int, int) {
	lo := sort.Search(len(l.txns), func(i int) bool { return !l.txns[i].Date.Before(s.from) })
	hi := sort.Search(len(l.txns), func(i int) bool { return l.txns[i].Date.After(s.to) })
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Totals sums the transactions dated inside [from, to].
func (l *Ledger) Totals(from, to time.Time) Totals {
	return l.sum(span{from: day(from), to: day(to)})
}

func (l *Ledger) sum(s span) Totals {
	lo, hi := l.bounds(s)
	return l.prefix[hi].sub(l.prefix[lo])
}

// Between returns the transactions dated inside [from, to].
func (l *Ledger) Between(from, to time.Time) []Transaction {
	lo, hi := l.bounds(span{from: day(from), to: day(to)})
	return l.txns[lo:hi]
}

// YearTotals sums one calendar year.
func (l *Ledger) YearTotals(year int) Totals {
	return l.sum(span{from: yearStart(year), to: yearEnd(year)})
}

// Checkpoint is one point at which a threshold test is evaluated: the
// window of sales that counts on Date.
type Checkpoint struct {
	Date   time.Time
	From   time.Time
	To     time.Time
	Totals Totals
}

// Checkpoints expands a lookback window into the ordered evaluation points
// that fall in the year. The first checkpoint whose totals meet the
// threshold gives the trigger date.
func (l *Ledger) Checkpoints(year int, lb Lookback) []Checkpoint {
	var points []Checkpoint
	add := func(at time.Time, s span) {
		points = append(points, Checkpoint{Date: at, From: s.from, To: s.to, Totals: l.sum(s)})
	}
	cumulative := func() {
		start := yearStart(year)
		lo, hi := l.bounds(span{from: start, to: yearEnd(year)})
		for i := lo; i < hi; i++ {
			if i+1 < hi && l.txns[i+1].Date.Equal(l.txns[i].Date) {
				continue
			}
			add(l.txns[i].Date, span{from: start, to: l.txns[i].Date})
		}
	}

	switch lb.Kind {
	case WindowPriorCalendarYear:
		add(yearStart(year), span{from: yearStart(year - 1), to: yearEnd(year - 1)})
	case WindowCurrentOrPriorYear:
		add(yearStart(year), span{from: yearStart(year - 1), to: yearEnd(year - 1)})
		cumulative()
	case WindowRolling12Months:
		if lb.AnchorMonth != 0 {
			anchor := time.Date(year, lb.AnchorMonth, lb.AnchorDay, 0, 0, 0, 0, time.UTC)
			add(anchor, twelveMonthsEnding(anchor))
			break
		}
		add(yearStart(year), twelveMonthsEnding(yearStart(year)))
		lo, hi := l.bounds(span{from: yearStart(year), to: yearEnd(year)})
		for i := lo; i < hi; i++ {
			d := l.txns[i].Date
			if d.Equal(yearStart(year)) || (i+1 < hi && l.txns[i+1].Date.Equal(d)) {
				continue
			}
			add(d, twelveMonthsEnding(d))
		}
	case WindowTrailingQuarters:
		n := lb.Quarters
		if n <= 0 {
			n = 4
		}
		for _, qe := range quarterEnds(year) {
			add(qe, quartersEnding(qe, n))
		}
	default:
		cumulative()
	}
	return points
}
