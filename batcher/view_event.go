package batcher

import (
	"context"
	"time"
)

// ViewEvent represents a “view” event on a product.
type ViewEvent struct {
	ProductID int
	UserID    *uint
	IPAddress *string
	ViewedAt  time.Time
}

// AggregatedCount maps product IDs to total view counts.
type AggregatedCount map[int]int

// Aggregate counts the events of a batch per product.
func Aggregate(events []ViewEvent) AggregatedCount {
	agg := make(AggregatedCount, len(events))
	for _, e := range events {
		agg[e.ProductID]++
	}
	return agg
}

// ViewPersister writes a batch of view events to durable storage. A batch
// either succeeds or fails as a whole.
type ViewPersister interface {
	BatchRecordViews(ctx context.Context, events []ViewEvent) error
}

// PersisterFunc adapts a function to ViewPersister.
type PersisterFunc func(ctx context.Context, events []ViewEvent) error

func (f PersisterFunc) BatchRecordViews(ctx context.Context, events []ViewEvent) error {
	return f(ctx, events)
}
