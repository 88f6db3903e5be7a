package nexus

import (
	"errors"
	"testing"
	"time"
)

func TestParseLookback(t *testing.T) {
	tests := []struct {
		descriptor string
		kind       WindowKind
		quarters   int
		month      time.Month
		day        int
		assumed    bool
	}{
		{"current calendar year", WindowCalendarYear, 0, 0, 0, false},
		{"Calendar Year", WindowCalendarYear, 0, 0, 0, false},
		{"previous calendar year", WindowPriorCalendarYear, 0, 0, 0, false},
		{"current or previous calendar year", WindowCurrentOrPriorYear, 0, 0, 0, false},
		{"prior or current calendar year", WindowCurrentOrPriorYear, 0, 0, 0, false},
		{"trailing 12 months", WindowRolling12Months, 0, 0, 0, false},
		{"preceding twelve-month period", WindowRolling12Months, 0, 0, 0, false},
		{"trailing 12 months ending September 30", WindowRolling12Months, 0, time.September, 30, false},
		{"four preceding sales tax quarters", WindowTrailingQuarters, 4, 0, 0, false},
		{"trailing 2 quarters", WindowTrailingQuarters, 2, 0, 0, false},
		{"trailing seven quarters", WindowTrailingQuarters, 7, 0, 0, false},
		{"twelve consecutive quarters", WindowTrailingQuarters, 12, 0, 0, false},
		{"whenever the commissioner decides", WindowCalendarYear, 0, 0, 0, true},
		{"trailing 12 months ending Smarch 40", WindowCalendarYear, 0, 0, 0, true},
	}

	for _, tt := range tests {
		lb, err := ParseLookback(tt.descriptor)
		if tt.assumed {
			if !errors.Is(err, ErrAmbiguousLookback) {
				t.Errorf("ParseLookback(%q) error = %v, want ambiguous lookback", tt.descriptor, err)
			}
			if !lb.Assumed {
				t.Errorf("ParseLookback(%q) Assumed = false, want true", tt.descriptor)
			}
		} else if err != nil {
			t.Errorf("ParseLookback(%q) unexpected error: %v", tt.descriptor, err)
		}
		if lb.Kind != tt.kind {
			t.Errorf("ParseLookback(%q) kind = %v, want %v", tt.descriptor, lb.Kind, tt.kind)
		}
		if lb.Quarters != tt.quarters {
			t.Errorf("ParseLookback(%q) quarters = %d, want %d", tt.descriptor, lb.Quarters, tt.quarters)
		}
		if lb.AnchorMonth != tt.month || lb.AnchorDay != tt.day {
			t.Errorf("ParseLookback(%q) anchor = %v %d, want %v %d", tt.descriptor, lb.AnchorMonth, lb.AnchorDay, tt.month, tt.day)
		}
	}
}

func TestQuartersEnding(t *testing.T) {
	s := quartersEnding(date("2023-06-30"), 4)
	if !s.from.Equal(date("2022-07-01")) || !s.to.Equal(date("2023-06-30")) {
		t.Errorf("quartersEnding = [%s, %s], want [2022-07-01, 2023-06-30]", s.from.Format(dateLayout), s.to.Format(dateLayout))
	}
}
