package qa

// State is the terminal or intermediate stage of one question's pipeline.
// A question advances Planned -> Executed -> Composed on the generation
// path; failures stop at PlanningFailed or ExecutionFailed and are
// reported, never silently retried.
type State string

const (
	StatePlanned         State = "planned"
	StateExecuted        State = "executed"
	StateComposed        State = "composed"
	StatePlanningFailed  State = "planning_failed"
	StateExecutionFailed State = "execution_failed"
)

// Mode selects which pipeline answered a question
type Mode string

const (
	// ModeGenerate plans a query expression and executes it in the sandbox
	ModeGenerate Mode = "generate"

	// ModeRetrieve embeds the question and answers from retrieved rows
	ModeRetrieve Mode = "retrieve"
)
