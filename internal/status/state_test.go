package status

import (
	"testing"
	"time"

	"github.com/parleychat/parley/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if got := m.Current(); got != Starting {
		t.Errorf("Current() = %v, want %v", got, Starting)
	}
}

func TestValidTransitionChain(t *testing.T) {
	m := NewMachine(nil)
	chain := []State{Connecting, Connected, Reconnecting, Connecting, Connected, Closed}
	for _, s := range chain {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition(%v) error = %v", s, err)
		}
	}
	if m.Current() != Closed {
		t.Errorf("final state = %v, want %v", m.Current(), Closed)
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Starting -> Connected should be rejected")
	}
	if m.Current() != Starting {
		t.Errorf("state changed on rejected transition: %v", m.Current())
	}
}

func TestClosedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	for _, s := range []State{Connecting, Closed} {
		if err := m.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Transition(Connecting); err == nil {
		t.Error("Closed should be terminal")
	}
}

func TestTransitionPublishesChange(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.KindStatusChanged, 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(Change)
		if !ok {
			t.Fatalf("payload type = %T, want Change", evt.Payload)
		}
		if change.From != Starting || change.To != Connecting {
			t.Errorf("change = %+v, want Starting->Connecting", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status change event")
	}
}
