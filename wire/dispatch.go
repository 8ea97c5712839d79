package wire

import "sync"

// dispatcher is the packet-type-to-handler registry a Connection
// consults once Established. Grounded on the teacher's Hub, whose
// register/unregister channels maintain a live map of client
// connections under a mutex; generalised here from a client-fanout map
// to a packet-type-to-handler map, with the same "no further
// registration once running" rule.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	started  bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{handlers: map[string]Handler{}}
}

// register binds h to name. Returns ErrAlreadyStarted if called after
// start().
func (d *dispatcher) register(name string, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}
	d.handlers[name] = h
	return nil
}

func (d *dispatcher) start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
}

// dispatch invokes the handler registered for name, if any. The bool
// result reports whether a handler was found; per spec.md §4.G,
// dispatch of an unrecognised packet type is never itself an error —
// callers log and discard.
func (d *dispatcher) dispatch(name string, args Args) (bool, error) {
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := h(args); err != nil {
		return true, err
	}
	return true, nil
}
