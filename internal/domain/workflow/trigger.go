package workflow

import "context"

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerApprove  Trigger = "approve"
	TriggerReject   Trigger = "reject"
	TriggerCheckOut Trigger = "checkout"
	TriggerReturn   Trigger = "return"
	TriggerStart    Trigger = "start"
	TriggerComplete Trigger = "complete"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

type outcomeKey struct{}

// WithOutcome attaches the requested completion outcome to ctx so that
// outcome guards can select the target state when TriggerComplete fires.
func WithOutcome(ctx context.Context, outcome State) context.Context {
	return context.WithValue(ctx, outcomeKey{}, outcome)
}

// OutcomeFrom returns the outcome attached by WithOutcome.
func OutcomeFrom(ctx context.Context) (State, bool) {
	s, ok := ctx.Value(outcomeKey{}).(State)
	return s, ok
}

// OutcomeIs builds a guard that passes when the requested outcome equals want.
func OutcomeIs(want State) GuardFunc {
	return func(ctx context.Context) bool {
		got, ok := OutcomeFrom(ctx)
		return ok && got == want
	}
}
