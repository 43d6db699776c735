package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type State string

const (
	StateConnecting         State = "CONNECTING"
	StateQuickProfile       State = "QUICK_PROFILE"
	StateDetailedExtraction State = "DETAILED_EXTRACTION"
	StateVerify             State = "VERIFY"
	StateGapAnalysis        State = "GAP_ANALYSIS"
	StateQualitative        State = "QUALITATIVE"
	StateQuantitative       State = "QUANTITATIVE"
	StateClassify           State = "CLASSIFY"
	StateNarrative          State = "NARRATIVE"
	StateMergeAndEmit       State = "MERGE_AND_EMIT"
	StatePersist            State = "PERSIST"
	StateComplete           State = "COMPLETE"
	StateFailed             State = "FAILED"
)

var (
	analyzeStates     = []State{StateConnecting, StateQuickProfile, StateDetailedExtraction, StateMergeAndEmit, StatePersist, StateComplete}
	verifyStates      = []State{StateConnecting, StateVerify, StatePersist, StateComplete}
	gapStates         = []State{StateConnecting, StateGapAnalysis, StateMergeAndEmit, StatePersist, StateComplete}
	denialStates      = []State{StateConnecting, StateQualitative, StateQuantitative, StateMergeAndEmit, StatePersist, StateComplete}
	consolidateStates = []State{StateConnecting, StateClassify, StateNarrative, StateMergeAndEmit, StatePersist, StateComplete}
)

var ErrIllegalTransition = errors.New("illegal pipeline transition")

// Machine walks a fixed ordered list of states. Each Advance must name the
// next state; skipping and going back are rejected. FAILED is reachable
// from any state before the last.
type Machine struct {
	mu      sync.Mutex
	order   []State
	idx     int
	failed  bool
	entered time.Time
}

func NewMachine(order []State) *Machine {
	return &Machine{order: order, entered: time.Now()}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed {
		return StateFailed
	}
	return m.order[m.idx]
}

// Advance moves to next and returns the state left along with the time spent
// in it.
func (m *Machine) Advance(next State) (State, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.order[m.idx]
	if m.failed {
		return StateFailed, 0, fmt.Errorf("%w: already failed", ErrIllegalTransition)
	}
	if next == StateFailed {
		if m.idx == len(m.order)-1 {
			return cur, 0, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, cur, next)
		}
		m.failed = true
		return cur, m.since(), nil
	}
	if m.idx+1 >= len(m.order) || m.order[m.idx+1] != next {
		return cur, 0, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, cur, next)
	}
	m.idx++
	return cur, m.since(), nil
}

func (m *Machine) since() time.Duration {
	now := time.Now()
	d := now.Sub(m.entered)
	m.entered = now
	return d
}
