package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/parleychat/parley/internal/bus"
)

// State is the event-channel connection state of a session daemon.
type State string

const (
	Starting     State = "STARTING"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	Degraded     State = "DEGRADED"
	Closed       State = "CLOSED"
	Errored      State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Starting:     {Connecting, Errored},
	Connecting:   {Connected, Reconnecting, Closed, Errored},
	Connected:    {Reconnecting, Degraded, Closed, Errored},
	Reconnecting: {Connecting, Connected, Degraded, Closed, Errored},
	Degraded:     {Connecting, Reconnecting, Connected, Closed},
	Errored:      {Starting},
	Closed:       {},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Starting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Starting, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves to a new state, or errors if the step is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.KindStatusChanged, Change{From: from, To: to}))
	}
	return nil
}

// Change is the payload for status change events.
type Change struct {
	From State
	To   State
}
