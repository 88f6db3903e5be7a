package nexus

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// WindowKind enum constants
type WindowKind int

const (
	WindowCalendarYear WindowKind = iota
	WindowPriorCalendarYear
	WindowCurrentOrPriorYear
	WindowRolling12Months
	WindowTrailingQuarters
)

func (k WindowKind) String() string {
	switch k {
	case WindowCalendarYear:
		return "calendar_year"
	case WindowPriorCalendarYear:
		return "prior_calendar_year"
	case WindowCurrentOrPriorYear:
		return "current_or_prior_calendar_year"
	case WindowRolling12Months:
		return "rolling_12_months"
	case WindowTrailingQuarters:
		return "trailing_quarters"
	default:
		return "unknown"
	}
}

// Lookback is a parsed lookback descriptor.
type Lookback struct {
	Kind WindowKind
	// Quarters is set for WindowTrailingQuarters.
	Quarters int
	// AnchorMonth and AnchorDay are set when a rolling window ends on a fixed
	// date each year, e.g. "12 months ending September 30".
	AnchorMonth time.Month
	AnchorDay   int
	// Assumed marks a descriptor that could not be mapped.
	Assumed bool
}

var (
	quartersPattern = regexp.MustCompile(`(?:(?:trailing|preceding|previous|prior|last)\s+(\w+)|(\w+)\s+(?:trailing|preceding|previous|prior|consecutive))\s+(?:sales\s+tax\s+)?quarters?`)
	rollingPattern  = regexp.MustCompile(`(?:rolling|trailing|preceding|previous|prior|last)\s+(?:12|twelve)[\s-]+months?`)
	anchorPattern   = regexp.MustCompile(`ending\s+(?:on\s+)?([a-z]+)\s+(\d{1,2})`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// ParseLookback maps a rule's free-text lookback descriptor onto a supported
// window. Unmapped descriptors fall back to the current calendar year and
// return an *AmbiguousLookbackWindowError the caller surfaces as a caveat.
func ParseLookback(descriptor string) (Lookback, error) {
	d := strings.ToLower(strings.TrimSpace(descriptor))
	d = strings.Join(strings.Fields(d), " ")

	if m := quartersPattern.FindStringSubmatch(d); m != nil {
		word := m[1]
		if word == "" {
			word = m[2]
		}
		n, ok := numberWords[word]
		if !ok {
			parsed, err := strconv.Atoi(word)
			if err != nil || parsed <= 0 {
				return assumedLookback(descriptor)
			}
			n = parsed
		}
		return Lookback{Kind: WindowTrailingQuarters, Quarters: n}, nil
	}

	if rollingPattern.MatchString(d) || d == "12 months" {
		lb := Lookback{Kind: WindowRolling12Months}
		if m := anchorPattern.FindStringSubmatch(d); m != nil {
			month, ok := parseMonth(m[1])
			dayNum, err := strconv.Atoi(m[2])
			if !ok || err != nil || dayNum < 1 || dayNum > daysIn(month, 2001) {
				return assumedLookback(descriptor)
			}
			lb.AnchorMonth, lb.AnchorDay = month, dayNum
		}
		return lb, nil
	}

	if strings.Contains(d, "calendar year") || d == "current year" || d == "previous year" || d == "prior year" {
		hasCurrent := strings.Contains(d, "current") || strings.Contains(d, "this")
		hasPrior := strings.Contains(d, "previous") || strings.Contains(d, "prior") || strings.Contains(d, "preceding")
		switch {
		case hasCurrent && hasPrior:
			return Lookback{Kind: WindowCurrentOrPriorYear}, nil
		case hasPrior:
			return Lookback{Kind: WindowPriorCalendarYear}, nil
		default:
			return Lookback{Kind: WindowCalendarYear}, nil
		}
	}

	return assumedLookback(descriptor)
}

func assumedLookback(descriptor string) (Lookback, error) {
	return Lookback{Kind: WindowCalendarYear, Assumed: true}, &AmbiguousLookbackWindowError{Descriptor: descriptor}
}

func parseMonth(s string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return m, true
		}
	}
	return 0, false
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// span is an inclusive date range [from, to].
type span struct {
	from, to time.Time
}

func (s span) contains(d time.Time) bool {
	return !d.Before(s.from) && !d.After(s.to)
}

// twelveMonthsEnding returns the 12-month window that ends on end.
func twelveMonthsEnding(end time.Time) span {
	return span{from: end.AddDate(-1, 0, 1), to: end}
}

// quartersEnding returns n whole calendar quarters ending on quarterEnd.
func quartersEnding(quarterEnd time.Time, n int) span {
	firstDayAfter := quarterEnd.AddDate(0, 0, 1)
	return span{from: firstDayAfter.AddDate(0, -3*n, 0), to: quarterEnd}
}

// quarterEnds lists the last day of each quarter in the year.
func quarterEnds(year int) []time.Time {
	return []time.Time{
		time.Date(year, time.March, 31, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}
