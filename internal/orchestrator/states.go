package orchestrator

// State is one phase of a chat turn. Transitions are linear except for the
// decision fork after the first model call: DIRECT_ANSWER when the model
// answers outright, TOOL_DISPATCH when it requests the search capability.
type State int

const (
	// StateRetrieving queries the knowledge base for grounding context.
	StateRetrieving State = iota

	// StatePrompting builds the system instruction from the retrieval result.
	StatePrompting

	// StateAwaitingModel waits on the non-streaming decision call.
	StateAwaitingModel

	// StateDirectAnswer streams the model's answer with no tool involvement.
	StateDirectAnswer

	// StateToolDispatch executes the requested capabilities and feeds their
	// results back to the model.
	StateToolDispatch

	// StateStreaming forwards model tokens to the client.
	StateStreaming

	// StateDone closes the turn.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRetrieving:
		return "RETRIEVING"
	case StatePrompting:
		return "PROMPTING"
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateDirectAnswer:
		return "DIRECT_ANSWER"
	case StateToolDispatch:
		return "TOOL_DISPATCH"
	case StateStreaming:
		return "STREAMING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
