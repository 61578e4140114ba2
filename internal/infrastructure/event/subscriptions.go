package event

import (
	"sync"

	"github.com/tourism/backoffice/internal/domain/shared"
)

type subscription struct {
	handler shared.EventHandler
	// nil means every event type
	types map[string]struct{}
}

func (s subscription) wants(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// subscriptionTable keeps handlers in subscription order.
// Subscribing a handler again widens its existing entry.
type subscriptionTable struct {
	mu      sync.RWMutex
	entries []subscription
}

func (t *subscriptionTable) add(handler shared.EventHandler, eventTypes ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].handler != handler {
			continue
		}
		if len(eventTypes) == 0 {
			t.entries[i].types = nil
		} else if t.entries[i].types != nil {
			for _, et := range eventTypes {
				t.entries[i].types[et] = struct{}{}
			}
		}
		return
	}

	sub := subscription{handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(eventTypes))
		for _, et := range eventTypes {
			sub.types[et] = struct{}{}
		}
	}
	t.entries = append(t.entries, sub)
}

func (t *subscriptionTable) remove(handler shared.EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.entries[:0]
	for _, sub := range t.entries {
		if sub.handler != handler {
			kept = append(kept, sub)
		}
	}
	for i := len(kept); i < len(t.entries); i++ {
		t.entries[i] = subscription{}
	}
	t.entries = kept
}

// matching returns the handlers that want eventType, in subscription order
func (t *subscriptionTable) matching(eventType string) []shared.EventHandler {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var handlers []shared.EventHandler
	for _, sub := range t.entries {
		if sub.wants(eventType) {
			handlers = append(handlers, sub.handler)
		}
	}
	return handlers
}

func (t *subscriptionTable) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
