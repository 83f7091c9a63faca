package overlay

import (
	"testing"
	"time"
)

func TestAckRouterDispatchesRemoval(t *testing.T) {
	a := NewAckRouter()
	ack := a.Expect("h1")

	a.Dispatch(RendererEvent{Type: EventLayerRemoved, MapID: "map-1", Handle: "h1"})

	select {
	case <-ack:
	case <-time.After(time.Second):
		t.Fatal("expected removal acknowledgment")
	}
}

func TestAckRouterIgnoresAddEvents(t *testing.T) {
	a := NewAckRouter()
	ack := a.Expect("h1")

	a.Dispatch(RendererEvent{Type: EventLayerAdded, MapID: "map-1", Handle: "h1"})

	select {
	case <-ack:
		t.Fatal("add events must not acknowledge removals")
	default:
	}
}

func TestAckRouterForget(t *testing.T) {
	a := NewAckRouter()
	ack := a.Expect("h1")
	a.Forget("h1")

	// Dispatch after Forget is a no-op; the channel stays open but unclosed.
	a.Dispatch(RendererEvent{Type: EventLayerRemoved, Handle: "h1"})
	select {
	case <-ack:
		t.Fatal("forgotten waiter must not be signalled")
	default:
	}
}
