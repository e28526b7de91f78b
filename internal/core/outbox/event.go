// Package outbox defines domain events written to the transactional outbox.
package outbox

import (
	"context"

	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
)

// Event is published in the same transaction as the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher writes events to the outbox.
// MUST be called inside a transaction context.
type Publisher interface {
	Publish(ctx context.Context, tc tenant.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, tc tenant.Context, event Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, tc tenant.Context, event Event) error {
	return f(ctx, tc, event)
}
