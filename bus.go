package sessionkit

import (
	"fmt"
	"sync"
)

// TransitionListener observes lifecycle transitions. A returned error is
// captured and reported, never propagated to the transition's originator.
type TransitionListener func(LifecycleEvent) error

// transitionBus is the typed fan-out for lifecycle transitions. Emissions are
// serialized: a transition's listeners all settle before the next transition
// is delivered. Listener failures and panics are isolated per listener.
type transitionBus struct {
	mu        sync.Mutex
	listeners map[uint64]TransitionListener
	nextID    uint64

	// emitMu serializes emissions so transitions form a queue.
	emitMu sync.Mutex

	report func(err error)
}

func newTransitionBus(report func(err error)) *transitionBus {
	if report == nil {
		report = func(error) {}
	}
	return &transitionBus{
		listeners: make(map[uint64]TransitionListener),
		report:    report,
	}
}

// subscribe registers a listener and returns its unsubscribe function.
func (b *transitionBus) subscribe(listener TransitionListener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// emit delivers the event to every listener, settling all of them and
// collecting failures instead of aborting on the first.
func (b *transitionBus) emit(ev LifecycleEvent) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	snapshot := make([]TransitionListener, 0, len(b.listeners))
	for _, l := range b.listeners {
		snapshot = append(snapshot, l)
	}
	b.mu.Unlock()

	for _, listener := range snapshot {
		if err := b.settle(listener, ev); err != nil {
			b.report(err)
		}
	}
}

func (b *transitionBus) settle(listener TransitionListener, ev LifecycleEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transition listener panic: %v", r)
		}
	}()
	return listener(ev)
}
