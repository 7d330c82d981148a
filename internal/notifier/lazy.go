package notifier

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Publisher is the publish side shared by every notifier in this tree.
type Publisher interface {
	Publish(ctx context.Context, topic string, message string) (string, error)
}

// DialFunc creates a Publisher.
type DialFunc func(ctx context.Context) (Publisher, error)

// Lazy defers creating the transport client until the first Publish, so a
// missing credential or project surfaces as a publish failure of that run.
// A failed dial is attempted again on the next Publish.
type Lazy struct {
	dial DialFunc

	mu  sync.Mutex
	pub Publisher
}

// NewLazy wraps dial.
func NewLazy(dial DialFunc) *Lazy {
	return &Lazy{dial: dial}
}

// Publish dials on first use and delegates.
func (l *Lazy) Publish(ctx context.Context, topic string, message string) (string, error) {
	pub, err := l.publisher(ctx)
	if err != nil {
		return "", err
	}
	return pub.Publish(ctx, topic, message)
}

// Close closes the dialed publisher when it holds resources. It is a no-op
// if Publish was never called.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.pub.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *Lazy) publisher(ctx context.Context) (Publisher, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pub != nil {
		return l.pub, nil
	}
	if l.dial == nil {
		return nil, errors.New("notifier dial func is not configured")
	}
	// The client outlives the run that dials it.
	pub, err := l.dial(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	l.pub = pub
	return pub, nil
}
