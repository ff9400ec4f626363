package models

// Phase is the lifecycle state of a competition.
type Phase string

const (
	PhaseDraft     Phase = "DRAFT"
	PhaseUpcoming  Phase = "UPCOMING"
	PhaseOngoing   Phase = "ONGOING"
	PhasePaused    Phase = "PAUSED"
	PhaseChecking  Phase = "CHECKING"
	PhasePublished Phase = "PUBLISHED"
	PhaseCompleted Phase = "COMPLETED"
	PhaseCanceled  Phase = "CANCELED"
)

// Phases lists every phase in lifecycle order, CANCELED last.
var Phases = []Phase{
	PhaseDraft,
	PhaseUpcoming,
	PhaseOngoing,
	PhasePaused,
	PhaseChecking,
	PhasePublished,
	PhaseCompleted,
	PhaseCanceled,
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// ResultsReady reports whether submissions are closed and results can be derived.
func (p Phase) ResultsReady() bool {
	return p == PhaseChecking || p == PhasePublished || p == PhaseCompleted
}

// Published reports whether results are visible to non-admin callers.
func (p Phase) Published() bool {
	return p == PhasePublished || p == PhaseCompleted
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCanceled
}
