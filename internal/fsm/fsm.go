// Package fsm provides a small finite state machine builder on top of looplab/fsm.
// file: internal/fsm/fsm.go
package fsm

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
	lfsm "github.com/looplab/fsm"
)

// State represents a state in the FSM.
type State string

// Event represents an event that can trigger a state transition.
type Event string

// TransitionAction runs after the machine has entered the transition's
// destination state.
type TransitionAction func(ctx context.Context, event Event, data interface{}) error

// GuardCondition vetoes a transition when it returns false.
type GuardCondition func(ctx context.Context, event Event, data interface{}) bool

// Transition defines one event edge. An event may be declared more than once
// with different From states but always with the same To state.
type Transition struct {
	From      []State
	To        State
	Event     Event
	Action    TransitionAction
	Condition GuardCondition
}

// FSM is the builder and runtime interface.
type FSM interface {
	// AddTransition stores a transition definition. Call Build() after adding all transitions.
	AddTransition(transition Transition) FSM
	// Build creates the underlying machine.
	Build() error
	// CurrentState returns the current state.
	CurrentState() State
	// Is reports whether the machine is in state s.
	Is(s State) bool
	// CanTransition reports whether event is allowed from the current state.
	CanTransition(event Event) bool
	// Transition fires event.
	Transition(ctx context.Context, event Event, data interface{}) error
}

// ErrNotBuilt is returned by runtime calls made before a successful Build.
var ErrNotBuilt = errors.New("state machine has not been built")

type loopFSM struct {
	initialState State
	logger       logging.Logger
	transitions  []Transition
	fsm          *lfsm.FSM
	buildErr     error
	mu           sync.RWMutex
}

// NewFSM creates a builder with the given initial state.
func NewFSM(initialState State, logger logging.Logger) FSM {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &loopFSM{
		initialState: initialState,
		logger:       logger.WithField("component", "fsm"),
	}
}

// AddTransition implements FSM.
func (l *loopFSM) AddTransition(t Transition) FSM {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.fsm != nil:
		l.recordBuildErr(errors.New("cannot AddTransition after Build"))
	case len(t.From) == 0:
		l.recordBuildErr(errors.Newf("transition for event '%s' has no 'From' states", t.Event))
	case t.Event == "" || t.To == "":
		l.recordBuildErr(errors.New("transition needs an event and a destination"))
	default:
		l.transitions = append(l.transitions, t)
	}
	return l
}

func (l *loopFSM) recordBuildErr(err error) {
	l.logger.Error("Invalid FSM transition definition.", "error", err)
	if l.buildErr == nil {
		l.buildErr = err
	}
}

// Build implements FSM.
func (l *loopFSM) Build() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fsm != nil || l.buildErr != nil {
		return l.buildErr
	}

	descs := make(map[string]*lfsm.EventDesc)
	order := make([]string, 0)
	callbacks := make(lfsm.Callbacks)

	for i := range l.transitions {
		t := l.transitions[i]
		name := string(t.Event)
		desc, ok := descs[name]
		if !ok {
			desc = &lfsm.EventDesc{Name: name, Dst: string(t.To)}
			descs[name] = desc
			order = append(order, name)
		} else if desc.Dst != string(t.To) {
			l.buildErr = errors.Newf("conflicting destinations '%s' and '%s' for event '%s'", desc.Dst, t.To, name)
			return l.buildErr
		}
		for _, s := range t.From {
			desc.Src = appendUnique(desc.Src, string(s))
		}
	}

	// Guards and actions are dispatched per event so that several transitions
	// may share an event with different sources.
	for _, name := range order {
		evTransitions := l.transitionsFor(Event(name))
		callbacks["before_"+name] = func(ctx context.Context, e *lfsm.Event) {
			t := matchSource(evTransitions, e.Src)
			if t == nil || t.Condition == nil {
				return
			}
			if !t.Condition(ctx, t.Event, firstArg(e)) {
				e.Cancel(errors.Newf("guard for event '%s' from state '%s' failed", t.Event, e.Src))
			}
		}
		callbacks["after_"+name] = func(ctx context.Context, e *lfsm.Event) {
			t := matchSource(evTransitions, e.Src)
			if t == nil || t.Action == nil {
				return
			}
			if err := t.Action(ctx, t.Event, firstArg(e)); err != nil {
				l.logger.Error("Transition action failed.", "event", t.Event, "to", t.To, "error", err)
			}
		}
	}

	events := make([]lfsm.EventDesc, 0, len(order))
	for _, name := range order {
		events = append(events, *descs[name])
	}
	l.fsm = lfsm.NewFSM(string(l.initialState), events, callbacks)
	l.logger.Debug("FSM built.", "initialState", l.initialState, "events", len(events))
	return nil
}

func (l *loopFSM) transitionsFor(event Event) []Transition {
	out := make([]Transition, 0, 1)
	for _, t := range l.transitions {
		if t.Event == event {
			out = append(out, t)
		}
	}
	return out
}

func matchSource(ts []Transition, src string) *Transition {
	for i := range ts {
		for _, s := range ts[i].From {
			if string(s) == src {
				return &ts[i]
			}
		}
	}
	return nil
}

func firstArg(e *lfsm.Event) interface{} {
	if len(e.Args) > 0 {
		return e.Args[0]
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func (l *loopFSM) machine() (*lfsm.FSM, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fsm == nil {
		if l.buildErr != nil {
			return nil, l.buildErr
		}
		return nil, ErrNotBuilt
	}
	return l.fsm, nil
}

// CurrentState implements FSM. It returns "" before Build.
func (l *loopFSM) CurrentState() State {
	m, err := l.machine()
	if err != nil {
		return ""
	}
	return State(m.Current())
}

// Is implements FSM.
func (l *loopFSM) Is(s State) bool {
	return l.CurrentState() == s
}

// CanTransition implements FSM.
func (l *loopFSM) CanTransition(event Event) bool {
	m, err := l.machine()
	if err != nil {
		return false
	}
	return m.Can(string(event))
}

// Transition implements FSM.
func (l *loopFSM) Transition(ctx context.Context, event Event, data interface{}) error {
	m, err := l.machine()
	if err != nil {
		return err
	}
	from := m.Current()
	var args []interface{}
	if data != nil {
		args = append(args, data)
	}
	if err := m.Event(ctx, string(event), args...); err != nil {
		var noTransition lfsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
		l.logger.Debug("FSM transition rejected.", "event", event, "from", from, "error", err)
		return errors.Wrapf(err, "transition '%s' from state '%s'", event, from)
	}
	l.logger.Debug("FSM transition.", "event", event, "from", from, "to", m.Current())
	return nil
}
