// Package events fans export lifecycle events out to Redis pub/sub and
// RabbitMQ.
package events

import (
	"context"
	"errors"
	"log"

	"github.com/drewmudry/captioncast/tasks"
)

// Publisher sends an export event somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev tasks.ExportEvent) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev tasks.ExportEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger logs events. It is the publisher used when nothing else is
// configured.
type Logger struct{}

func (Logger) Publish(_ context.Context, ev tasks.ExportEvent) error {
	log.Printf("[events] job %d %s (%d%%) %s", ev.JobID, ev.Type, ev.Progress, ev.Message)
	return nil
}
