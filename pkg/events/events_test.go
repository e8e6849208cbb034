package events_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/events"
	"github.com/recallhq/recall-go/pkg/memory"
)

func TestNew(t *testing.T) {
	event := events.New(events.TypeCacheHit, memory.KindCode, map[string]interface{}{"key": "abc"})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, events.TypeCacheHit, event.Type)
	assert.Equal(t, memory.KindCode, event.Kind)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, "abc", event.Data["key"])
}

func TestNew_UniqueIDs(t *testing.T) {
	a := events.New(events.TypeRetrievalStarted, "", nil)
	b := events.New(events.TypeRetrievalStarted, "", nil)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestNopSink(t *testing.T) {
	var sink events.Sink = events.NopSink{}
	assert.NotPanics(t, func() {
		sink.Emit(events.New(events.TypeRetrievalCompleted, "", nil))
	})
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sink := events.NewSlogSink(logger)
	sink.Emit(events.New(events.TypeCacheMiss, memory.KindNarrative, map[string]interface{}{
		"reason": "cold",
	}))

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "cache.miss")
	assert.Contains(t, out, "narrative")
	assert.Contains(t, out, "cold")
}

func TestSlogSink_NilLoggerUsesDefault(t *testing.T) {
	sink := events.NewSlogSink(nil)
	assert.NotPanics(t, func() {
		sink.Emit(events.New(events.TypeRetrievalError, "", nil))
	})
}
