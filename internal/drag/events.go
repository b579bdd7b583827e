package drag

import "sync"

// EventKind identifies a pointer or window event delivered during a drag
type EventKind string

const (
	PointerMove   EventKind = "pointer_move"
	PointerUp     EventKind = "pointer_up"
	PointerCancel EventKind = "pointer_cancel"
	FocusLost     EventKind = "focus_lost"
)

// Event is one input event. X and Y are normalised device coordinates and are
// only meaningful for PointerMove. Camera, when set, replaces the camera the
// gesture started with.
type Event struct {
	Kind   EventKind `json:"kind"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Camera *Camera   `json:"camera,omitempty"`
}

// EventSource delivers events to listeners until the returned cancel func is called
type EventSource interface {
	Listen(fn func(Event)) (cancel func())
}

// Bus is an in-process EventSource. Emit calls listeners synchronously, so a
// listener may cancel itself from inside its callback.
type Bus struct {
	mu        sync.Mutex
	listeners map[uint64]func(Event)
	nextID    uint64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{listeners: make(map[uint64]func(Event))}
}

// Listen registers fn. The returned cancel func is idempotent.
func (b *Bus) Listen(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers e to every registered listener
func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Len returns the number of registered listeners
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
