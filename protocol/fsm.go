package protocol

import "fmt"

// fsmCallback runs as the action of a transition. args carries whatever
// the triggering event needs to pass through to the action.
type fsmCallback func(args []interface{})

// eventDesc describes a single state transition: from state current,
// any of events moves to state to, running cb along the way.
type eventDesc struct {
	from, to string
	events   []string
	cb       fsmCallback
}

// fsm is a small table-driven state machine. It holds no domain knowledge
// of its own: callers build the table once and drive it with named events.
type fsm struct {
	current string
	table   []eventDesc
}

// handleEvent looks up the transition for e in the current state and runs
// it, updating current on success. It returns an error if no transition
// matches, leaving current unchanged.
func (f *fsm) handleEvent(e string, args ...interface{}) error {
	for _, t := range f.table {
		if f.current != t.from {
			continue
		}
		for _, event := range t.events {
			if e != event {
				continue
			}
			f.current = t.to
			if t.cb != nil {
				t.cb(args)
			}
			return nil
		}
	}
	return fmt.Errorf("no transition defined for event %v in state %v", e, f.current)
}
