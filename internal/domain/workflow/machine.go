package workflow

import (
	"context"
	"fmt"
	"sort"
)

// StateMachine tracks the state of one workflow record and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire reports whether trigger has a transition whose guard passes for ctx
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire moves the machine along the first permitted transition for trigger
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists the triggers configured for the current state, sorted
	PermittedTriggers() []Trigger
}

type stateMachine struct {
	current State
	rules   rules
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(ctx context.Context, trigger Trigger) bool {
	_, err := m.next(ctx, trigger)
	return err == nil
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	to, err := m.next(ctx, trigger)
	if err != nil {
		return err
	}
	m.current = to
	return nil
}

func (m *stateMachine) next(ctx context.Context, trigger Trigger) (State, error) {
	ts := m.rules[m.current][trigger]
	if len(ts) == 0 {
		if m.current.IsTerminal() {
			return "", fmt.Errorf("%w: %s is terminal, cannot %s", ErrInvalidTransition, m.current, trigger)
		}
		return "", fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.guard == nil || t.guard(ctx) {
			return t.toState, nil
		}
	}

	return "", fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	byTrigger := m.rules[m.current]
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
