package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (s *captureSink) Deliver(ctx context.Context, event Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *captureSink) delivered() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, discardLogger(), 16, nil)

	d.Enqueue(Event{Type: EventAdmitted, UserID: "u1", ClassID: "c1"})
	d.Enqueue(Event{Type: EventCancelled, UserID: "u1", ClassID: "c1"})
	d.Close()

	events := sink.delivered()
	require.Len(t, events, 2)
	assert.Equal(t, EventAdmitted, events[0].Type)
	assert.Equal(t, EventCancelled, events[1].Type)
}

func TestDispatcherSwallowsSinkFailures(t *testing.T) {
	sink := &captureSink{err: errors.New("smtp down")}
	d := NewDispatcher(sink, discardLogger(), 16, nil)

	// Enqueue returns immediately and the failure goes nowhere.
	d.Enqueue(Event{Type: EventAdmitted, UserID: "u1", ClassID: "c1"})
	d.Close()

	assert.Len(t, sink.delivered(), 1)
}

func TestDispatcherNeverBlocksWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &captureSink{block: block}
	var dropped int
	d := NewDispatcher(sink, discardLogger(), 1, func() { dropped++ })

	// One event occupies the worker, one fills the buffer; the rest must be
	// dropped without blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Enqueue(Event{Type: EventAdmitted, ClassID: "c1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full buffer")
	}

	close(block)
	d.Close()
	assert.Greater(t, dropped, 0)
}

func TestLogSinkDelivers(t *testing.T) {
	sink := &LogSink{Logger: discardLogger()}
	err := sink.Deliver(context.Background(), Event{Type: EventAdmitted, UserID: "u1", ClassID: "c1"})
	assert.NoError(t, err)
}
