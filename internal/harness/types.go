package harness

// OutcomeOK is the outcome of a step that succeeded.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	As      string `json:"as,omitempty"`
	At      int64  `json:"at"`
	Outcome string `json:"outcome"` // OutcomeOK or an error code

	// Amount moved by the step: claimed, funded, minted or refunded.
	Amount uint64 `json:"amount,omitempty"`

	// Withdrawn is the schedule's total after a successful claim.
	Withdrawn uint64 `json:"withdrawn,omitempty"`

	// Committed and Aborted count claims settled by a reconcile step.
	Committed int `json:"committed,omitempty"`
	Aborted   int `json:"aborted,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step met its expectation and every assertion
	// and invariant held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes each failure. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
