package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hrpay/internal/domain/audit"
)

// Collector keeps in-process HTTP counters and counts audit events by type,
// so it can sit in the audit fan-out next to the durable sinks.
type Collector struct {
	totalRequests   uint64
	clientErrors    uint64
	errorRequests   uint64
	conflicts       uint64
	rateLimited     uint64
	totalDurationMs uint64

	mu     sync.Mutex
	events map[string]uint64
}

func New() *Collector {
	return &Collector{events: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status == 429:
		atomic.AddUint64(&c.rateLimited, 1)
	case status == 409:
		atomic.AddUint64(&c.conflicts, 1)
		atomic.AddUint64(&c.clientErrors, 1)
	case status >= 400:
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordEvent(_ context.Context, evt audit.Event) error {
	c.mu.Lock()
	c.events[evt.Type]++
	c.mu.Unlock()
	return nil
}

// AuditSink adapts the collector to the audit.Logger interface.
func (c *Collector) AuditSink() audit.Logger {
	return eventSink{c}
}

type eventSink struct{ c *Collector }

func (s eventSink) Record(ctx context.Context, evt audit.Event) error {
	return s.c.RecordEvent(ctx, evt)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	events := make(map[string]uint64, len(c.events))
	for k, v := range c.events {
		events[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":     total,
		"clientErrorsTotal": atomic.LoadUint64(&c.clientErrors),
		"errorsTotal":       atomic.LoadUint64(&c.errorRequests),
		"conflictsTotal":    atomic.LoadUint64(&c.conflicts),
		"rateLimitedTotal":  atomic.LoadUint64(&c.rateLimited),
		"avgDurationMs":     avg,
		"totalDurationMs":   totalMs,
		"auditEvents":       events,
	}
}
