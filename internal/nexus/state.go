package nexus

import "time"

type stateKind int

const (
	stateNoNexus stateKind = iota
	stateApproaching
	stateNexus // absorbing
)

// YearObservation is what the tracker learns about one jurisdiction-year.
type YearObservation struct {
	Year int
	// Economic is the threshold verdict; Unknown covers missing rules and
	// indeterminate tests.
	Economic     Tri
	EconomicDate time.Time
	Approaching  bool
	// GraceDays delays the obligation after an economic trigger.
	GraceDays int

	PhysicalActive bool
	PhysicalDate   time.Time
}

// YearState is the tracker's verdict for one year.
type YearState struct {
	Status          Status
	FirstNexusYear  *int
	NexusDate       *time.Time
	ObligationStart *time.Time
}

type nexusState struct {
	kind            stateKind
	economic        bool
	physical        bool
	firstYear       int
	nexusDate       time.Time
	obligationStart time.Time
	lastYear        int
	undetermined    bool
}

// Tracker is the per-jurisdiction nexus state machine. Years must be fed in
// ascending order. Once any nexus is reached it is never left, and the
// first nexus year, nexus date and obligation start stay fixed.
type Tracker struct {
	state nexusState
}

// Step advances the tracker by one year.
func (t *Tracker) Step(obs YearObservation) YearState {
	t.state = transition(t.state, obs)
	return t.state.view()
}

// transition is the only place state changes.
func transition(s nexusState, obs YearObservation) nexusState {
	s.lastYear = obs.Year
	s.undetermined = false

	var triggered []time.Time
	var obligations []time.Time

	if obs.Economic == True && !s.economic {
		s.economic = true
		triggered = append(triggered, obs.EconomicDate)
		obligations = append(obligations, obs.EconomicDate.AddDate(0, 0, obs.GraceDays))
	}
	if obs.PhysicalActive && !s.physical {
		s.physical = true
		triggered = append(triggered, obs.PhysicalDate)
		obligations = append(obligations, obs.PhysicalDate)
	}

	if s.kind == stateNexus {
		return s
	}

	if len(triggered) > 0 {
		s.kind = stateNexus
		s.nexusDate = earliest(triggered)
		s.obligationStart = earliest(obligations)
		s.firstYear = s.nexusDate.Year()
		if s.firstYear > obs.Year {
			s.firstYear = obs.Year
		}
		return s
	}

	switch {
	case obs.Economic == Unknown:
		s.kind = stateNoNexus
		s.undetermined = true
	case obs.Approaching:
		s.kind = stateApproaching
	default:
		s.kind = stateNoNexus
	}
	return s
}

func (s nexusState) view() YearState {
	switch s.kind {
	case stateNexus:
		first := s.firstYear
		nexusDate := s.nexusDate
		obligation := s.obligationStart
		status := StatusEconomic
		switch {
		case s.economic && s.physical:
			status = StatusBoth
		case s.physical:
			status = StatusPhysical
		}
		return YearState{Status: status, FirstNexusYear: &first, NexusDate: &nexusDate, ObligationStart: &obligation}
	case stateApproaching:
		return YearState{Status: StatusApproaching}
	default:
		if s.undetermined {
			return YearState{Status: StatusIndeterminate}
		}
		return YearState{Status: StatusNone}
	}
}

func earliest(ts []time.Time) time.Time {
	first := ts[0]
	for _, t := range ts[1:] {
		if t.Before(first) {
			first = t
		}
	}
	return first
}

// physicalPresence reports whether any fact covers the year and the
// earliest start among those that do.
func physicalPresence(facts []PhysicalNexusFact, year int) (bool, time.Time) {
	var start time.Time
	active := false
	for _, f := range facts {
		if !f.activeIn(year) {
			continue
		}
		if !active || f.StartDate.Before(start) {
			start = day(f.StartDate)
		}
		active = true
	}
	return active, start
}
