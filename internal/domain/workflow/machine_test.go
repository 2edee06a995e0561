package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateApproved, false},
		{StateCheckedOut, false},
		{StateReturned, true},
		{StateRejected, true},
		{StateCreated, false},
		{StateInProgress, false},
		{StateFitForUse, true},
		{StateFailedInspection, true},
		{StateAwaitingParts, true},
		{StateScrapped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"loan state", StatePending, true},
		{"maintenance state", StateInProgress, true},
		{"outcome", StateOutsourced, true},
		{"unknown state", State("lost"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsOutcome(t *testing.T) {
	if StateInProgress.IsOutcome() {
		t.Error("in_progress must not be an outcome")
	}
	if StateReturned.IsOutcome() {
		t.Error("loan states must not be outcomes")
	}
	if !StateFitForUse.IsOutcome() {
		t.Error("fit_for_use must be an outcome")
	}
}

func TestOpenStates(t *testing.T) {
	loan := OpenLoanStates()
	if len(loan) != 3 || loan[0] != StatePending || loan[2] != StateCheckedOut {
		t.Errorf("OpenLoanStates() = %v", loan)
	}

	mnt := OpenMaintenanceStates()
	if len(mnt) != 2 || mnt[0] != StateCreated || mnt[1] != StateInProgress {
		t.Errorf("OpenMaintenanceStates() = %v", mnt)
	}
}

func TestLoanStates_ReturnsCopy(t *testing.T) {
	s := LoanStates()
	s[0] = StateScrapped
	if LoanStates()[0] != StatePending {
		t.Error("LoanStates() must not expose the package slice")
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerCheckOut.String(); got != "checkout" {
		t.Errorf("Trigger.String() = %v, want %v", got, "checkout")
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StatePending)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	if config2 := builder.Configure(StatePending); config != config2 {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	builder.Configure(State("bogus"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	builder.Build(State("bogus"))
}

func TestBuilder_BuildSnapshotsRules(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).Permit(TriggerApprove, StateApproved)

	machine := builder.Build(StatePending)
	builder.Configure(StatePending).Permit(TriggerReject, StateRejected)

	if machine.CanFire(context.Background(), TriggerReject) {
		t.Error("rules added after Build() must not affect existing machines")
	}
	if !builder.Build(StatePending).CanFire(context.Background(), TriggerReject) {
		t.Error("new machines should see the added rule")
	}
}

func TestStateConfiguration_Permit(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).Permit(TriggerApprove, StateApproved)

	machine := builder.Build(StatePending)

	if !machine.CanFire(context.Background(), TriggerApprove) {
		t.Error("CanFire() should return true for permitted trigger")
	}

	if err := machine.Fire(context.Background(), TriggerApprove); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine.State() != StateApproved {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StateApproved)
	}
}

func TestStateConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool {
			return false
		})

	machine := builder.Build(StatePending)

	err := machine.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}

	if machine.State() != StatePending {
		t.Errorf("State should remain %v after failed Fire(), got %v", StatePending, machine.State())
	}
	if machine.CanFire(context.Background(), TriggerApprove) {
		t.Error("CanFire() should evaluate guards")
	}
}

func TestStateConfiguration_OutcomeGuards(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateInProgress).
		PermitIf(TriggerComplete, StateFitForUse, OutcomeIs(StateFitForUse)).
		PermitIf(TriggerComplete, StateAwaitingParts, OutcomeIs(StateAwaitingParts))

	tests := []struct {
		name    string
		outcome State
		want    State
		wantErr error
	}{
		{"fit for use", StateFitForUse, StateFitForUse, nil},
		{"awaiting parts", StateAwaitingParts, StateAwaitingParts, nil},
		{"outcome not configured", StateOutsourced, StateInProgress, ErrGuardFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := builder.Build(StateInProgress)
			err := machine.Fire(WithOutcome(context.Background(), tt.outcome), TriggerComplete)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fire() error = %v, want %v", err, tt.wantErr)
			}
			if machine.State() != tt.want {
				t.Errorf("State() = %v, want %v", machine.State(), tt.want)
			}
		})
	}

	t.Run("no outcome in context", func(t *testing.T) {
		machine := builder.Build(StateInProgress)
		if err := machine.Fire(context.Background(), TriggerComplete); !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
		}
	})
}

func TestStateConfiguration_PermitPanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	builder.Configure(StatePending).Permit(TriggerApprove, State("bogus"))
}

func TestStateMachine_Fire_InvalidTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).Permit(TriggerApprove, StateApproved)

	tests := []struct {
		name    string
		initial State
		trigger Trigger
	}{
		{"unconfigured trigger", StatePending, TriggerReturn},
		{"unconfigured state", StateApproved, TriggerApprove},
		{"terminal state", StateReturned, TriggerApprove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := builder.Build(tt.initial)
			err := machine.Fire(context.Background(), tt.trigger)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
			}
			if machine.State() != tt.initial {
				t.Errorf("State changed to %v on failed Fire()", machine.State())
			}
		})
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerApprove, StateApproved)

	got := builder.Build(StatePending).PermittedTriggers()
	if len(got) != 2 || got[0] != TriggerApprove || got[1] != TriggerReject {
		t.Errorf("PermittedTriggers() = %v, want [approve reject]", got)
	}

	if got := builder.Build(StateReturned).PermittedTriggers(); len(got) != 0 {
		t.Errorf("PermittedTriggers() on terminal = %v, want empty", got)
	}
}
