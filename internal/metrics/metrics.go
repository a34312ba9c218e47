package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Registry groups the order-engine counters exposed on the stats endpoint.
type Registry struct {
	OrdersCreated   Counter
	OrdersCancelled Counter
	OrdersRated     Counter
	StockConflicts  Counter
}

// Snapshot is a point-in-time read of all counters.
func (r *Registry) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"orders_created":   r.OrdersCreated.Load(),
		"orders_cancelled": r.OrdersCancelled.Load(),
		"orders_rated":     r.OrdersRated.Load(),
		"stock_conflicts":  r.StockConflicts.Load(),
	}
}
