package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus carrying the window/input event stream
// into the frame loop. Events emitted during frame N become readable at the
// head of frame N+1's Input phase, when the orchestrator swaps buffers and
// dispatches. Emitters (the windowing layer) may run off the main thread, so
// the back buffer is locked; dispatch happens on the main thread only.
type Bus struct {
	mu       sync.Mutex // protects back buffer and handler registration
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event into the back buffer (readable next frame).
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	b.back[t] = append(b.back[t], event)
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// Poll rotates back→front, clears the new back buffer, and delivers every
// front-buffer event to its subscribed handlers. Called once per frame by
// the orchestrator at the head of the Input phase.
func (b *Bus) Poll() {
	b.mu.Lock()
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
	b.mu.Unlock()

	for t, events := range b.front {
		handlers := b.handlers[t]
		for _, ev := range events {
			for _, h := range handlers {
				// Safe: Subscribe and Emit key by the same type.
				reflect.ValueOf(h).Call([]reflect.Value{reflect.ValueOf(ev)})
			}
		}
	}
}
