package service

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/tour-bookings/internal/platform/payments"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

var ErrQueueFull = errors.New("fulfillment queue is full")

type Fulfiller interface {
	Fulfill(ctx context.Context, sess *payments.CheckoutSession) error
}

type fulfillmentTask struct {
	ctx     context.Context // carries log attributes only
	eventID string
	session *payments.CheckoutSession
}

// FulfillmentQueue decouples webhook acknowledgment from booking creation.
// Tasks outlive the HTTP request that enqueued them.
type FulfillmentQueue struct {
	tasks   chan fulfillmentTask
	worker  Fulfiller
	timeout time.Duration
}

func NewFulfillmentQueue(size int, worker Fulfiller, timeout time.Duration) *FulfillmentQueue {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FulfillmentQueue{tasks: make(chan fulfillmentTask, size), worker: worker, timeout: timeout}
}

// Enqueue never blocks. ErrQueueFull tells the caller to refuse the delivery
// so the gateway retries it later.
func (q *FulfillmentQueue) Enqueue(ctx context.Context, eventID string, sess *payments.CheckoutSession) error {
	select {
	case q.tasks <- fulfillmentTask{ctx: logger.Detach(ctx), eventID: eventID, session: sess}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes tasks until ctx is cancelled, then drains what is buffered.
func (q *FulfillmentQueue) Run(ctx context.Context) error {
	for {
		select {
		case t := <-q.tasks:
			q.process(t)
		case <-ctx.Done():
			q.drain()
			return nil
		}
	}
}

func (q *FulfillmentQueue) drain() {
	for {
		select {
		case t := <-q.tasks:
			q.process(t)
		default:
			return
		}
	}
}

func (q *FulfillmentQueue) process(t fulfillmentTask) {
	ctx, cancel := context.WithTimeout(t.ctx, q.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Fulfillment panicked", "event_id", t.eventID, "panic", r)
		}
	}()

	var sessionID string
	if t.session != nil {
		sessionID = t.session.ID
	}

	err := q.worker.Fulfill(ctx, t.session)
	switch {
	case err == nil:
	case errors.Is(err, ErrIncompleteSession):
		logger.WarnContext(ctx, "Fulfillment abandoned", "event_id", t.eventID, "session_id", sessionID, "error", err)
	default:
		logger.ErrorContext(ctx, "Fulfillment failed", "event_id", t.eventID, "session_id", sessionID, "error", err)
	}
}

// Len reports buffered tasks.
func (q *FulfillmentQueue) Len() int { return len(q.tasks) }
