package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
)

// Catalog maps event type names to the concrete events they decode into
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]func() shared.DomainEvent
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]func() shared.DomainEvent)}
}

// DomainCatalog returns a catalog holding every sale and cashback event
func DomainCatalog() *Catalog {
	c := NewCatalog()
	c.Register(sales.EventTypeSaleRecorded, func() shared.DomainEvent { return &sales.SaleRecordedEvent{} })
	c.Register(sales.EventTypeSaleCancelled, func() shared.DomainEvent { return &sales.SaleCancelledEvent{} })
	c.Register(sales.EventTypeSaleDeleted, func() shared.DomainEvent { return &sales.SaleDeletedEvent{} })
	c.Register(cashback.EventTypeGrantIssued, func() shared.DomainEvent { return &cashback.GrantIssuedEvent{} })
	c.Register(cashback.EventTypeGrantsSettled, func() shared.DomainEvent { return &cashback.GrantsSettledEvent{} })
	c.Register(cashback.EventTypeGrantsExpired, func() shared.DomainEvent { return &cashback.GrantsExpiredEvent{} })
	return c
}

// Register binds eventType to a constructor returning a pointer to a zero event.
// Registering the same type twice replaces the constructor.
func (c *Catalog) Register(eventType string, factory func() shared.DomainEvent) {
	c.mu.Lock()
	c.factories[eventType] = factory
	c.mu.Unlock()
}

// Encode renders an event as JSON
func (c *Catalog) Encode(event shared.DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Decode parses data into the event registered under eventType
func (c *Catalog) Decode(eventType string, data []byte) (shared.DomainEvent, error) {
	c.mu.RLock()
	factory, ok := c.factories[eventType]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
	}
	return event, nil
}

// Has reports whether eventType is registered
func (c *Catalog) Has(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[eventType]
	return ok
}

// Types lists the registered event types in name order
func (c *Catalog) Types() []string {
	c.mu.RLock()
	types := make([]string, 0, len(c.factories))
	for t := range c.factories {
		types = append(types, t)
	}
	c.mu.RUnlock()
	sort.Strings(types)
	return types
}
