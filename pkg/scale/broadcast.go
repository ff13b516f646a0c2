package scale

import (
	"context"
	"math"
	"sync"
	"time"
)

// Cell is a single-slot, latest-wins broadcast of the current
// measurement. Publish never blocks and overwrites the previous value;
// readiness is a single outstanding signal, so publishes between two
// waits coalesce into one wakeup and only the newest value is observed.
//
// Each publish wakes at most one waiter. Concurrent consumers (several
// websocket streams, an HTTP wait, the MQTT bridge) therefore share the
// stream of wakeups rather than each seeing every reading; any consumer
// needing the current value regardless of wakeups reads Load.
type Cell struct {
	mu    sync.Mutex
	val   float64
	ready chan struct{}
}

// NewCell creates a Cell holding NaN until the first publish.
func NewCell() *Cell {
	return &Cell{
		val:   math.NaN(),
		ready: make(chan struct{}, 1),
	}
}

// Publish stores v as the current measurement and signals readiness.
func (c *Cell) Publish(v float64) {
	c.mu.Lock()
	c.val = v
	c.mu.Unlock()
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Load returns the current measurement, NaN before the first publish.
func (c *Cell) Load() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}

// Wait blocks until a readiness signal is consumed, then returns the
// current value. timeout 0 waits until the signal or ctx is done; a
// positive timeout bounds the wait. ok is false when the wait expired
// or the context was canceled before a publish.
func (c *Cell) Wait(ctx context.Context, timeout time.Duration) (float64, bool) {
	if timeout == 0 {
		select {
		case <-c.ready:
		case <-ctx.Done():
			return 0, false
		}
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-c.ready:
		case <-timer.C:
			return 0, false
		case <-ctx.Done():
			return 0, false
		}
	}
	return c.Load(), true
}
