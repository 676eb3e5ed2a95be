package interfaces

import "context"

// EventPublisher fans committed mutations out to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}
