package audit

import (
	"context"
	"errors"
	"time"
)

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Domain    string         `json:"domain"`
	ActorID   string         `json:"actorId"`
	EntityID  string         `json:"entityId,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Filter struct {
	Type      string
	Domain    string
	ActorUser string
}

func (f Filter) Matches(evt Event) bool {
	if f.Type != "" && evt.Type != f.Type {
		return false
	}
	if f.Domain != "" && evt.Domain != f.Domain {
		return false
	}
	if f.ActorUser != "" && evt.ActorID != f.ActorUser {
		return false
	}
	return true
}

// Logger is the write side every domain service records events through.
type Logger interface {
	Record(ctx context.Context, evt Event) error
}

type Reader interface {
	Count(ctx context.Context, filter Filter) (int, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error)
}

// Fanout records an event in every sink and joins their errors.
type Fanout []Logger

func (f Fanout) Record(ctx context.Context, evt Event) error {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
