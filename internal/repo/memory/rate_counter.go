package memory

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	expires time.Time
}

type RateCounter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

func NewRateCounter() *RateCounter {
	return &RateCounter{windows: make(map[string]window), now: time.Now}
}

func (c *RateCounter) Incr(_ context.Context, key string, d time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.expires) {
		w = window{expires: now.Add(d)}
	}
	w.count++
	c.windows[key] = w
	return w.count, nil
}
