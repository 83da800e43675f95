package session

import (
	"errors"
	"fmt"

	"github.com/chazu/voxloom/pkg/logging"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrStrokeCancelled is returned for events delivered after a cancel.
var ErrStrokeCancelled = errors.New("stroke cancelled")

// Tool selects what a stroke does at each step.
type Tool int

const (
	Place Tool = iota
	Erase
)

func (t Tool) String() string {
	if t == Erase {
		return "erase"
	}
	return "place"
}

// State is a stroke's position in its lifecycle.
type State int

const (
	Idle State = iota
	Dragging
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EventKind is the kind of pointer event.
type EventKind int

const (
	Press EventKind = iota
	Move
	Release
	Cancel
)

func (k EventKind) String() string {
	switch k {
	case Press:
		return "press"
	case Move:
		return "move"
	case Release:
		return "release"
	case Cancel:
		return "cancel"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one pointer event with its world-space ray.
type Event struct {
	Kind      EventKind
	Origin    r3.Vec
	Direction r3.Vec
}

// Result reports the stroke state after an event and the number of cells
// the event changed.
type Result struct {
	State   State
	Changed int
}

// Stroke drives placement or erasure from a stream of pointer events.
//
//	Idle     --press-->   Dragging  (one step)
//	Dragging --press/move--> Dragging (one step)
//	Idle     --move/release--> Idle (nothing)
//	Dragging --release--> Idle
//	any      --cancel-->  Cancelled (terminal)
//
// Cells changed before a cancel stay changed.
type Stroke struct {
	sess    *Session
	tool    Tool
	state   State
	changed int
}

// NewStroke returns an idle stroke applying tool to the session.
func (s *Session) NewStroke(tool Tool) *Stroke {
	return &Stroke{sess: s, tool: tool}
}

// State returns the current state.
func (st *Stroke) State() State { return st.state }

// Tool returns the stroke's tool.
func (st *Stroke) Tool() Tool { return st.tool }

// Changed returns the total number of cells changed so far.
func (st *Stroke) Changed() int { return st.changed }

// Handle advances the state machine by one event.
func (st *Stroke) Handle(ev Event) (Result, error) {
	if st.state == Cancelled {
		return Result{State: Cancelled}, ErrStrokeCancelled
	}

	n := 0
	switch ev.Kind {
	case Press:
		st.state = Dragging
		n = st.step(ev)
	case Move:
		if st.state == Dragging {
			n = st.step(ev)
		}
	case Release:
		st.state = Idle
	case Cancel:
		st.state = Cancelled
		logging.Logger().Debug("stroke cancelled", "tool", st.tool.String(), "changed", st.changed)
	default:
		return Result{State: st.state}, fmt.Errorf("session: unknown event kind %v", ev.Kind)
	}
	st.changed += n
	return Result{State: st.state, Changed: n}, nil
}

func (st *Stroke) step(ev Event) int {
	if st.tool == Erase {
		return st.sess.EraseAt(ev.Origin, ev.Direction)
	}
	return st.sess.PlaceAt(ev.Origin, ev.Direction)
}
