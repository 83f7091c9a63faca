package overlay

import (
	"fmt"
	"sync"
	"time"

	"github.com/escapdev/overlaysync/pkg/metrics"
	"github.com/escapdev/overlaysync/pkg/util"
)

// DefaultDedupTTL absorbs duplicate reactive deliveries of the same mutation
// without suppressing a user who legitimately repeats an action later.
const DefaultDedupTTL = 5 * time.Second

type actionKey struct {
	mapID     string
	category  Category
	action    Action
	signature string
}

// Deduper prevents an opacity/visibility mutation from being applied twice
// when the shared descriptor is observed by more than one trigger.
type Deduper struct {
	mu      sync.Mutex
	applied map[actionKey]time.Time
	ttl     time.Duration
	now     util.Clock
}

// NewDeduper constructs the action table. A nil clock uses the wall clock.
func NewDeduper(ttl time.Duration, clock util.Clock) *Deduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if clock == nil {
		clock = util.NowUTC
	}
	return &Deduper{applied: make(map[actionKey]time.Time), ttl: ttl, now: clock}
}

// ShouldApply reports whether the mutation is new within the TTL window.
func (d *Deduper) ShouldApply(mapID string, cat Category, action Action, signature string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	d.purgeLocked(now)
	key := actionKey{mapID: mapID, category: cat, action: action, signature: signature}
	if _, ok := d.applied[key]; ok {
		metrics.ActionsSuppressedTotal.Inc()
		return false
	}
	return true
}

// MarkApplied records the mutation so redundant re-delivery becomes a no-op.
// A new value supersedes earlier signatures of the same action, so flipping
// back within the TTL window reads as a genuine change, not a re-delivery.
func (d *Deduper) MarkApplied(mapID string, cat Category, action Action, signature string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.applied {
		if key.mapID == mapID && key.category == cat && key.action == action && key.signature != signature {
			delete(d.applied, key)
		}
	}
	key := actionKey{mapID: mapID, category: cat, action: action, signature: signature}
	d.applied[key] = d.now()
}

func (d *Deduper) purgeLocked(now time.Time) {
	for key, at := range d.applied {
		if now.Sub(at) > d.ttl {
			delete(d.applied, key)
		}
	}
}

// OpacitySignature serializes an opacity payload, e.g. "opacity:65".
func OpacitySignature(opacity int) string {
	return fmt.Sprintf("opacity:%d", opacity)
}

// VisibilitySignature serializes a visibility payload, e.g. "visible:false".
func VisibilitySignature(visible bool) string {
	return fmt.Sprintf("visible:%t", visible)
}
