package event

import (
	"context"

	"github.com/tourism/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// LoggingHandler writes every event it receives to the log
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger.Named("events")}
}

// EventTypes returns nil, the handler receives all events
func (h *LoggingHandler) EventTypes() []string {
	return nil
}

// Handle logs the event envelope
func (h *LoggingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.logger.Info("domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}

var _ shared.EventHandler = (*LoggingHandler)(nil)
