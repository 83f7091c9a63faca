package overlay

import (
	"sync"
	"time"

	"github.com/escapdev/overlaysync/pkg/util"
)

// EngineEventType discriminates events published on the engine bus.
type EngineEventType string

const (
	EventTransition EngineEventType = "transition"
	EventWarning    EngineEventType = "warning"
	EventHover      EngineEventType = "hover"
)

// EngineEvent is the upward-facing notification stream: reconciler state
// transitions, recoverable warnings, and feature hover updates.
type EngineEvent struct {
	Type       EngineEventType `json:"type"`
	MapID      string          `json:"mapId"`
	Category   Category        `json:"category,omitempty"`
	State      string          `json:"state,omitempty"`
	Message    string          `json:"message,omitempty"`
	Attributes map[string]any  `json:"attributes,omitempty"`
	At         time.Time       `json:"at"`
}

// EventBus fans engine events out to per-map subscribers. Slow subscribers
// lose events rather than blocking reconciliation.
type EventBus struct {
	mu   sync.Mutex
	subs map[string][]chan EngineEvent
	now  util.Clock
}

// NewEventBus constructs the bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string][]chan EngineEvent), now: util.NowUTC}
}

// Publish delivers an event to the map's subscribers without blocking.
func (b *EventBus) Publish(ev EngineEvent) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	b.mu.Lock()
	subs := b.subs[ev.MapID]
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a buffered listener for one map instance.
func (b *EventBus) Subscribe(mapID string) (<-chan EngineEvent, func()) {
	ch := make(chan EngineEvent, 32)
	b.mu.Lock()
	b.subs[mapID] = append(b.subs[mapID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[mapID]
		for i, c := range subs {
			if c == ch {
				b.subs[mapID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}
