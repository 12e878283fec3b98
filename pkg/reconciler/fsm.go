package reconciler

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = fmt.Errorf("invalid state transition")
)

type State string

const (
	StatePending      State = "pending"
	StateCreating     State = "creating"
	StateCreated      State = "created"
	StateLinking      State = "linking"
	StateLinked       State = "linked"
	StateCreateFailed State = "create_failed"
	StateLinkFailed   State = "link_failed"
)

// FSM tracks a single candidate through create and link.
type FSM struct {
	mu          sync.Mutex
	Transitions map[State]map[State]struct{}

	current State
	logger  *zap.Logger
}

type FSMOption func(*FSM)

func FSMWithLogger(logger *zap.Logger) FSMOption {
	return func(f *FSM) {
		f.logger = logger
	}
}

func FSMWithInitialState(state State) FSMOption {
	return func(f *FSM) {
		f.current = state
	}
}

func NewFSM(opts ...FSMOption) *FSM {
	f := &FSM{
		current: StatePending,
		logger:  zap.NewNop(),

		Transitions: map[State]map[State]struct{}{
			StatePending: {
				StateCreating: {},
			},
			StateCreating: {
				StateCreated:      {},
				StateCreateFailed: {},
			},
			StateCreated: {
				StateLinking: {},
			},
			StateLinking: {
				StateLinked:     {},
				StateLinkFailed: {},
			},
			// terminal states have no outgoing edges
			StateLinked:       {},
			StateCreateFailed: {},
			StateLinkFailed:   {},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FSM) Current() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Terminal reports whether the candidate has finished processing.
func (f *FSM) Terminal() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Transitions[f.current]) == 0
}

func (f *FSM) canTransition(to State) bool {
	if _, ok := f.Transitions[f.current][to]; ok {
		return true
	}
	return false
}

func (f *FSM) Transition(to State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.canTransition(to) {
		f.logger.Error("Invalid state transition",
			zap.String("from", string(f.current)),
			zap.String("to", string(to)),
		)
		return ErrInvalidTransition
	}
	previous := f.current
	f.current = to

	f.logger.Debug("State transitioned",
		zap.String("state", string(f.current)),
		zap.String("from", string(previous)),
	)
	return nil
}

// Status maps a terminal state onto the outcome status.
func (f *FSM) Status() (Status, bool) {
	switch f.Current() {
	case StateLinked:
		return StatusLinked, true
	case StateCreateFailed:
		return StatusCreateFailed, true
	case StateLinkFailed:
		return StatusLinkFailed, true
	}
	return "", false
}
