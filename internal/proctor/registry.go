package proctor

import "sync"

type registration struct {
	target EventTarget
	id     ListenerID
}

// registry tracks attached listeners so they can all be removed at once.
type registry struct {
	mu    sync.Mutex
	items []registration
}

func (r *registry) add(target EventTarget, event string, h Handler) {
	id := target.AddEventListener(event, h)
	r.mu.Lock()
	r.items = append(r.items, registration{target: target, id: id})
	r.mu.Unlock()
}

// teardownAll removes every tracked listener. Calling it again is a no-op.
func (r *registry) teardownAll() {
	r.mu.Lock()
	items := r.items
	r.items = nil
	r.mu.Unlock()

	for _, it := range items {
		it.target.RemoveEventListener(it.id)
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
