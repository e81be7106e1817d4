package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diagnosis/tour-bookings/pkg/logger"
)

// ErrBusClosed is returned once Close has been called.
var ErrBusClosed = errors.New("events: bus closed")

// LocalBus delivers events to handlers in the same process. Each handler
// runs on its own goroutine; Close waits for them.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(*Message)
	wg       sync.WaitGroup
	closed   bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]func(*Message))}
}

func (b *LocalBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("publish %s: %w", subject, ErrBusClosed)
	}
	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	for _, h := range b.handlers[subject] {
		msg := &Message{Subject: subject, Data: payload, Timestamp: time.Now()}
		b.wg.Add(1)
		go func(h func(*Message)) {
			defer b.wg.Done()
			h(msg)
		}(h)
	}
	return nil
}

// QueueSubscribe registers handler. In one process every queue group has a
// single member, so queue only exists to match the NATS signature.
func (b *LocalBus) QueueSubscribe(subject, _ string, handler func(msg *Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.handlers[subject] = append(b.handlers[subject], handler)
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}
