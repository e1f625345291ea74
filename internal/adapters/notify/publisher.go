package notify

import (
	"context"
)

// Publisher sends notifications. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ns ...Notification) error
	Close() error
}

// NopPublisher drops everything. It is used when no brokers are configured.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) Publish(context.Context, ...Notification) error { return nil }

func (NopPublisher) Close() error { return nil }
