package lifecycle

import "fmt"

// Stage is a lead's position in the outreach pipeline. Transitions are
// monotonic forward except the explicit reopen path (deal lost with
// reopen requested goes back to nurturing); suppressed is absorbing.
type Stage int

const (
	StageNew Stage = iota
	StageContacted
	StageResponded
	StageQualified
	StageNurturing
	StageAppointmentSet
	StageDealCreated
	StageDealActive
	StageClosedWon
	StageClosedLost
	StageSuppressed
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageContacted:
		return "contacted"
	case StageResponded:
		return "responded"
	case StageQualified:
		return "qualified"
	case StageNurturing:
		return "nurturing"
	case StageAppointmentSet:
		return "appointment_set"
	case StageDealCreated:
		return "deal_created"
	case StageDealActive:
		return "deal_active"
	case StageClosedWon:
		return "closed_won"
	case StageClosedLost:
		return "closed_lost"
	case StageSuppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// ParseStage converts a stage name to its enum value.
func ParseStage(s string) (Stage, error) {
	for stage := StageNew; stage <= StageSuppressed; stage++ {
		if stage.String() == s {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("unknown lead stage: %q", s)
}

// AllStages returns every defined stage, in pipeline order.
func AllStages() []Stage {
	stages := make([]Stage, 0, int(StageSuppressed)+1)
	for stage := StageNew; stage <= StageSuppressed; stage++ {
		stages = append(stages, stage)
	}
	return stages
}

// IsTerminal reports whether the stage accepts no further conversation
// events. Closed deals only move via explicit deal events; suppressed
// moves for nothing.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageClosedWon, StageClosedLost, StageSuppressed:
		return true
	default:
		return false
	}
}
