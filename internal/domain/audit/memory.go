package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory keeps events in process, newest last. It backs the memory store
// driver and tests.
type Memory struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(_ context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Count(_ context.Context, filter Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, evt := range m.events {
		if filter.Matches(evt) {
			total++
		}
	}
	return total, nil
}

func (m *Memory) List(_ context.Context, filter Filter, limit, offset int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Event
	skipped := 0
	for i := len(m.events) - 1; i >= 0; i-- {
		evt := m.events[i]
		if !filter.Matches(evt) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, evt)
	}
	return out, nil
}

func (m *Memory) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
