package event

import (
	"context"
	"encoding/json"

	"github.com/finbooks/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LoggingPublisher publishes domain events to the structured log. It stands
// in for a message broker in single-instance deployments; consumers tail
// the event log.
type LoggingPublisher struct {
	logger *zap.Logger
}

// NewLoggingPublisher creates a new LoggingPublisher
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingPublisher{logger: logger.Named("events")}
}

// Publish writes the event as a structured log entry
func (p *LoggingPublisher) Publish(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.logger.Info("domain event",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.ByteString("payload", payload))
	return nil
}

// Ensure LoggingPublisher implements EventPublisher
var _ shared.EventPublisher = (*LoggingPublisher)(nil)
