package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, Event) error { return f.err }

func TestMemoryListNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Record(ctx, Event{Type: "A", Domain: "payroll", ActorID: "u1"}))
	require.NoError(t, mem.Record(ctx, Event{Type: "B", Domain: "payroll", ActorID: "u2"}))
	require.NoError(t, mem.Record(ctx, Event{Type: "A", Domain: "payroll", ActorID: "u2"}))

	total, err := mem.Count(ctx, Filter{Type: "A"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	items, err := mem.List(ctx, Filter{Type: "A"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "u2", items[0].ActorID)
	assert.NotEmpty(t, items[0].ID)

	page, err := mem.List(ctx, Filter{}, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "B", page[0].Type)
}

func TestFanoutJoinsErrorsAndStillRecords(t *testing.T) {
	mem := NewMemory()
	boom := errors.New("boom")
	fan := Fanout{failingSink{err: boom}, mem, nil}

	err := fan.Record(context.Background(), Event{Type: "X"})
	assert.ErrorIs(t, err, boom)

	events := mem.Events()
	require.Len(t, events, 1)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestKafkaSinkPublishesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w, "audit")
	evt := Event{Type: "PAYROLL_PROCESSED", Domain: "payroll", EntityID: "rec-1", CreatedAt: time.Unix(0, 0).UTC()}

	require.NoError(t, sink.Record(context.Background(), evt))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "audit", msg.Topic)
	assert.Equal(t, "rec-1", string(msg.Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "PAYROLL_PROCESSED", decoded.Type)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
}

func TestKafkaSinkPropagatesWriterError(t *testing.T) {
	sink := NewKafkaSink(&fakeWriter{err: errors.New("broker down")}, "audit")
	assert.Error(t, sink.Record(context.Background(), Event{Type: "X"}))
}

func TestZapSinkLogsEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	require.NoError(t, sink.Record(context.Background(), Event{Type: "PAYROLL_FINANCE_APPROVAL", ActorID: "fin-1"}))
	entries := logs.FilterMessage("audit event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "PAYROLL_FINANCE_APPROVAL", entries[0].ContextMap()["type"])
}
