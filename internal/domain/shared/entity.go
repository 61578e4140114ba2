package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and audit timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity creates an entity with a generated ID stamped now
func NewBaseEntity() BaseEntity {
	return NewBaseEntityAt(time.Now())
}

// NewBaseEntityAt creates an entity with a generated ID stamped at now
func NewBaseEntityAt(now time.Time) BaseEntity {
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch records a modification at the given instant
func (e *BaseEntity) Touch(at time.Time) {
	e.UpdatedAt = at
}

// BaseAggregateRoot adds the optimistic version and the events raised since
// the aggregate was loaded. Version starts at 1 and every revision bumps it;
// repositories only write a row whose stored version is one behind.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	pending []DomainEvent
}

// NewBaseAggregateRoot creates an aggregate at version 1 stamped now
func NewBaseAggregateRoot() BaseAggregateRoot {
	return NewBaseAggregateRootAt(time.Now())
}

// NewBaseAggregateRootAt creates an aggregate at version 1 stamped at now
func NewBaseAggregateRootAt(now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntityAt(now), Version: 1}
}

// IncrementVersion bumps the version without touching timestamps
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// Revise marks a modification at the given instant and bumps the version
func (a *BaseAggregateRoot) Revise(at time.Time) {
	a.Touch(at)
	a.Version++
}

// RecordEvent queues an event to publish once the change commits
func (a *BaseAggregateRoot) RecordEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// PendingEvents returns the queued events without clearing them
func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

// DrainEvents returns the queued events and clears the queue
func (a *BaseAggregateRoot) DrainEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
