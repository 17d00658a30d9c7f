package chattr

import (
	"encoding/json"
	"sync"
)

// Handler receives the raw payload of one event occurrence.
type Handler func(data json.RawMessage)

// Subscription is the handle returned by Subscribe and consumed by
// Unsubscribe. Registration and cleanup are symmetric: unsubscribing a
// handle removes exactly the handler that subscribe registered.
type Subscription struct {
	event string
	id    uint64
}

// Dispatcher routes server events to registered handlers.
type Dispatcher struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
	onError  func(error)
}

// Subscribe registers fn for the named event and returns its handle.
func (d *Dispatcher) Subscribe(event string, fn Handler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = make(map[string]map[uint64]Handler)
	}
	if d.handlers[event] == nil {
		d.handlers[event] = make(map[uint64]Handler)
	}
	d.nextID++
	d.handlers[event][d.nextID] = fn
	return Subscription{event: event, id: d.nextID}
}

// Unsubscribe removes the handler identified by sub. Unknown or
// already-removed handles are ignored.
func (d *Dispatcher) Unsubscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m := d.handlers[sub.event]; m != nil {
		delete(m, sub.id)
	}
}

// SetOnError registers the callback for protocol and decode errors.
func (d *Dispatcher) SetOnError(fn func(error)) {
	d.mu.Lock()
	d.onError = fn
	d.mu.Unlock()
}

// Dispatch routes one server envelope to every handler subscribed to
// its event. Handlers run on the caller's goroutine, in the read loop's
// delivery order.
func (d *Dispatcher) Dispatch(out Outbound) {
	if out.Error != nil {
		d.fireError(FromProtocolError(out.Error))
		return
	}

	d.mu.Lock()
	var fns []Handler
	for _, fn := range d.handlers[out.Event] {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(out.Data)
	}
}

func (d *Dispatcher) fireError(err error) {
	d.mu.Lock()
	fn := d.onError
	d.mu.Unlock()
	if fn != nil && err != nil {
		fn(err)
	}
}
