package stock

import (
	"context"
	"time"
)

// Fetcher retrieves a page by URL. Implementations only need to return the
// static markup; scripts and stylesheets are never evaluated.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
	Close() error
}

// FetcherFactory builds a fresh Fetcher for a single run.
type FetcherFactory func() (Fetcher, error)

// Notifier publishes a plain-text message to a topic and returns the
// transport's message ID.
type Notifier interface {
	Publish(ctx context.Context, topic string, message string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
