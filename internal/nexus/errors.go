package nexus

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRuleNotFound matches any *RuleNotFoundError via errors.Is.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrIndeterminateThreshold matches any *IndeterminateThresholdError.
	ErrIndeterminateThreshold = errors.New("threshold indeterminate")
	// ErrAmbiguousLookback matches any *AmbiguousLookbackWindowError.
	ErrAmbiguousLookback = errors.New("ambiguous lookback window")
	// ErrTemporalOverlap matches any *InvalidTemporalOverlapError.
	ErrTemporalOverlap = errors.New("overlapping rule versions")
)

// RuleNotFoundError means no rule version of the kind covers the date.
// Callers must treat it as "cannot determine", never as "no nexus".
type RuleNotFoundError struct {
	Jurisdiction string
	Kind         RuleKind
	Date         time.Time
}

func (e *RuleNotFoundError) Error() string {
	return fmt.Sprintf("no %s rule for %s effective on %s", e.Kind, e.Jurisdiction, e.Date.Format(dateLayout))
}

func (e *RuleNotFoundError) Is(target error) bool { return target == ErrRuleNotFound }

// IndeterminateThresholdError means the threshold test needs a transaction
// count that the input does not carry.
type IndeterminateThresholdError struct {
	Jurisdiction string
	Year         int
}

func (e *IndeterminateThresholdError) Error() string {
	return fmt.Sprintf("%s %d: rule requires a transaction count but the sales data only carries aggregate totals", e.Jurisdiction, e.Year)
}

func (e *IndeterminateThresholdError) Is(target error) bool { return target == ErrIndeterminateThreshold }

// AmbiguousLookbackWindowError is a caveat: the descriptor was not
// understood and the current calendar year was used instead.
type AmbiguousLookbackWindowError struct {
	Descriptor string
}

func (e *AmbiguousLookbackWindowError) Error() string {
	return fmt.Sprintf("lookback %q is not a supported window; current calendar year assumed", e.Descriptor)
}

func (e *AmbiguousLookbackWindowError) Is(target error) bool { return target == ErrAmbiguousLookback }

// InvalidTemporalOverlapError is a rule-table integrity violation. It halts
// computation for the affected jurisdiction.
type InvalidTemporalOverlapError struct {
	Jurisdiction string
	Kind         RuleKind
	First        Period
	Second       Period
}

func (e *InvalidTemporalOverlapError) Error() string {
	return fmt.Sprintf("%s rules for %s overlap: %s and %s", e.Kind, e.Jurisdiction, e.First, e.Second)
}

func (e *InvalidTemporalOverlapError) Is(target error) bool { return target == ErrTemporalOverlap }

// reasonFor maps an engine error to its result reason code.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrRuleNotFound):
		return ReasonRuleNotFound
	case errors.Is(err, ErrIndeterminateThreshold):
		return ReasonIndeterminateThreshold
	case errors.Is(err, ErrAmbiguousLookback):
		return ReasonAmbiguousLookback
	case errors.Is(err, ErrTemporalOverlap):
		return ReasonInvalidTemporalOverlap
	default:
		return "error"
	}
}
