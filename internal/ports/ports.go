package ports

import (
	"context"
	"time"

	"CreatorWatch/internal/domain"
)

// ContentSource lists items of an account and retrieves their media.
type ContentSource interface {
	// ListItems returns the items currently visible on the account, in source order.
	// A failed listing returns an error; an account without content returns an empty slice.
	ListItems(ctx context.Context, account domain.Account) ([]domain.ItemRef, error)
	// FetchMedia writes the item's media to destPath.
	FetchMedia(ctx context.Context, ref domain.ItemRef, destPath string) error
	// FetchSecondaryMetadata returns an optional reference such as a sound link; "" means absent.
	FetchSecondaryMetadata(ctx context.Context, ref domain.ItemRef) (string, error)
}

// MediaFetcher downloads the payload of a single item.
type MediaFetcher interface {
	Fetch(ctx context.Context, ref domain.ItemRef, destPath string) error
}

// Ledger is the durable set of item identifiers already delivered.
type Ledger interface {
	Contains(ctx context.Context, id string) (bool, error)
	// Add records id and persists it before returning. Adding a known id is a no-op.
	Add(ctx context.Context, id string) error
	// Snapshot returns every recorded id in insertion order.
	Snapshot(ctx context.Context) ([]string, error)
	Close() error
}

// Sink delivers a composed record to one destination.
type Sink interface {
	Deliver(ctx context.Context, dest domain.Destination, record domain.DeliveryRecord) error
}

// Delay computes how long the loop waits after a cycle finished at now.
type Delay interface {
	Next(now time.Time) time.Duration
}

// CycleObserver is notified around every monitoring cycle.
type CycleObserver interface {
	CycleStarted(ctx context.Context, cycleID string)
	CycleFinished(ctx context.Context, report domain.CycleReport)
}
