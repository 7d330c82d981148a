// Package memory contains an in-memory notifier for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Publisher stores published messages for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	logger   *zap.Logger
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Message string
}

// New returns a memory Publisher. When logger is non-nil every message is
// also logged, which makes the publisher usable as a dry-run notifier.
func New(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, message string) (string, error) {
	p.mu.Lock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Message: message})
	id := fmt.Sprintf("memory-%d", len(p.messages))
	p.mu.Unlock()

	if p.logger != nil {
		p.logger.Info("notification (dry run)",
			zap.String("message_id", id),
			zap.String("topic", topic),
			zap.String("message", message),
		)
	}
	return id, nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
