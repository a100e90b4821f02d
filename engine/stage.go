package engine

// Stage identifies one state of the orchestration machine.
type Stage string

const (
	StageIntent      Stage = "intent"
	StagePlanner     Stage = "planner"
	StageExecutor    Stage = "executor"
	StageSynthesizer Stage = "synthesizer"
	StageValidator   Stage = "validator"
	StageRepair      Stage = "repair"
	StageResponder   Stage = "responder"

	// stageDone is internal; the machine stops when it is reached.
	stageDone Stage = "done"
)

// StatusPhrase is the human-readable message streamed to clients when the
// machine enters a stage.
func (s Stage) StatusPhrase() string {
	switch s {
	case StageIntent:
		return "Understanding your request"
	case StagePlanner:
		return "Planning your trip"
	case StageExecutor:
		return "Gathering information"
	case StageSynthesizer:
		return "Putting your itinerary together"
	case StageValidator:
		return "Checking the plan against your constraints"
	case StageRepair:
		return "Adjusting the plan"
	case StageResponder:
		return "Writing up your plan"
	default:
		return string(s)
	}
}
