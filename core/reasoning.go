package core

// NextAction tells the reasoning sub-loop how to proceed after a step.
type NextAction string

const (
	// NextActionContinue requests another reasoning iteration.
	NextActionContinue NextAction = "continue"
	// NextActionValidate asks for the result to be validated before answering.
	NextActionValidate NextAction = "validate"
	// NextActionFinalAnswer ends reasoning; the answer is ready.
	NextActionFinalAnswer NextAction = "final_answer"
)

// ReasoningStep is one structured step produced by the reasoning sub-loop.
type ReasoningStep struct {
	Title      string     `json:"title" jsonschema:"description=A concise title summarizing the step's purpose"`
	Action     string     `json:"action,omitempty" jsonschema:"description=The action derived from this step. Talk in first person like I will ..."`
	Result     string     `json:"result,omitempty" jsonschema:"description=The result of executing the action. Talk in first person like I did this and got ..."`
	Reasoning  string     `json:"reasoning,omitempty" jsonschema:"description=The thought process and considerations behind this step"`
	NextAction NextAction `json:"next_action,omitempty" jsonschema:"enum=continue,enum=validate,enum=final_answer,description=Indicates whether to continue reasoning or provide a final answer"`
	Confidence float64    `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=1,description=Confidence score for this step (0.0 to 1.0)"`
}

// ReasoningSteps is the structured response type of the reasoning agent.
type ReasoningSteps struct {
	ReasoningSteps []ReasoningStep `json:"reasoning_steps" jsonschema:"description=A list of reasoning steps"`
}
