// Package export decides when a download is due and serializes the
// filtered runs.
package export

import "sync"

// State is the trigger's position.
type State int

const (
	// Idle means no click has been seen yet.
	Idle State = iota
	// ArmedByClick means the last emitted click count is recorded.
	ArmedByClick
)

func (s State) String() string {
	if s == ArmedByClick {
		return "armed"
	}
	return "idle"
}

// Decide reports whether an export is due: current is set and differs from
// previous. A nil previous differs from every count.
func Decide(current, previous *int) bool {
	if current == nil {
		return false
	}
	return previous == nil || *current != *previous
}

// Trigger emits at most one export per distinct click count. It is safe for
// concurrent use.
type Trigger struct {
	mu       sync.Mutex
	state    State
	previous int
}

// Step records current and reports whether this cycle should export.
func (t *Trigger) Step(current *int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var prev *int
	if t.state == ArmedByClick {
		prev = &t.previous
	}
	if !Decide(current, prev) {
		return false
	}
	t.previous = *current
	t.state = ArmedByClick
	return true
}

// State returns the current state and, when armed, the last emitted count.
func (t *Trigger) State() (State, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.previous
}
