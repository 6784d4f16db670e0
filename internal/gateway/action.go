package gateway

import (
	"sync"
	"time"
)

// ActionState is the lifecycle of one submit control.
type ActionState string

const (
	ActionIdle       ActionState = "idle"
	ActionSubmitting ActionState = "submitting"
	ActionSucceeded  ActionState = "succeeded"
	ActionFailed     ActionState = "failed"
)

// ActionStatus is what a view needs to render a submit control.
type ActionStatus struct {
	Key        string      `json:"key"`
	State      ActionState `json:"state"`
	LastResult *Result     `json:"lastResult,omitempty"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// tracker holds per-key action state. Succeeded and Failed are passed
// through on the way back to Idle; only Idle and Submitting are ever
// observed by Status.
type tracker struct {
	mu      sync.Mutex
	actions map[string]ActionStatus
	onState func(key string, state ActionState)
}

func newTracker(onState func(string, ActionState)) *tracker {
	return &tracker{actions: make(map[string]ActionStatus), onState: onState}
}

// begin moves key to Submitting. It fails if a submission is in flight.
func (t *tracker) begin(key string) bool {
	t.mu.Lock()
	st, ok := t.actions[key]
	if ok && st.State == ActionSubmitting {
		t.mu.Unlock()
		return false
	}
	st.Key = key
	st.State = ActionSubmitting
	st.UpdatedAt = time.Now()
	t.actions[key] = st
	t.mu.Unlock()

	t.emit(key, ActionSubmitting)
	return true
}

// finish records the outcome and returns key to Idle.
func (t *tracker) finish(key string, res Result) {
	terminal := ActionFailed
	if res.Succeeded {
		terminal = ActionSucceeded
	}
	t.emit(key, terminal)

	t.mu.Lock()
	t.actions[key] = ActionStatus{Key: key, State: ActionIdle, LastResult: &res, UpdatedAt: time.Now()}
	t.mu.Unlock()

	t.emit(key, ActionIdle)
}

func (t *tracker) status(key string) ActionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.actions[key]
	if !ok {
		return ActionStatus{Key: key, State: ActionIdle}
	}
	return st
}

func (t *tracker) emit(key string, state ActionState) {
	if t.onState != nil {
		t.onState(key, state)
	}
}
