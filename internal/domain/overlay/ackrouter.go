package overlay

import "sync"

// AckRouter turns the renderer's event stream into per-handle removal
// acknowledgments so a reconciler can await "layer removed" instead of
// sleeping for a fixed settle delay.
type AckRouter struct {
	mu      sync.Mutex
	waiters map[RenderHandle]chan struct{}
}

// NewAckRouter constructs the router.
func NewAckRouter() *AckRouter {
	return &AckRouter{waiters: make(map[RenderHandle]chan struct{})}
}

// Expect registers interest in the removal of a handle. Must be called before
// the removal is issued to avoid missing a synchronous acknowledgment.
func (a *AckRouter) Expect(handle RenderHandle) <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.waiters[handle]
	if !ok {
		ch = make(chan struct{})
		a.waiters[handle] = ch
	}
	return ch
}

// Forget drops the waiter for a handle.
func (a *AckRouter) Forget(handle RenderHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.waiters, handle)
}

// Dispatch routes a renderer event to its waiter, if any.
func (a *AckRouter) Dispatch(ev RendererEvent) {
	if ev.Type != EventLayerRemoved {
		return
	}
	a.mu.Lock()
	ch, ok := a.waiters[ev.Handle]
	if ok {
		delete(a.waiters, ev.Handle)
	}
	a.mu.Unlock()
	if ok {
		close(ch)
	}
}
