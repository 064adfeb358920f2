// Package notify delivers best-effort notifications about admissions and
// cancellations. Delivery is fully decoupled from the operations that
// trigger it: enqueueing never blocks and delivery failures never propagate.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType distinguishes notification kinds.
type EventType string

const (
	EventAdmitted  EventType = "admitted"
	EventCancelled EventType = "cancelled"
)

// Event is a single notification to deliver.
type Event struct {
	Type       EventType
	UserID     string
	ClassID    string
	ClassTitle string
	At         time.Time
}

// Sink delivers a single event. The email collaborator implements this;
// LogSink is the default.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// LogSink records events to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

// Deliver implements Sink.
func (s *LogSink) Deliver(ctx context.Context, event Event) error {
	s.Logger.Info("notification",
		"type", string(event.Type),
		"user_id", event.UserID,
		"class_id", event.ClassID,
		"class_title", event.ClassTitle,
	)
	return nil
}

// Dispatcher fans events out to a Sink from a single worker goroutine.
type Dispatcher struct {
	ch        chan Event
	sink      Sink
	logger    *slog.Logger
	onDropped func()
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher with the given buffer size. onDropped is
// invoked whenever an event is discarded because the buffer is full; pass
// nil to ignore drops.
func NewDispatcher(sink Sink, logger *slog.Logger, buffer int, onDropped func()) *Dispatcher {
	d := &Dispatcher{
		ch:        make(chan Event, buffer),
		sink:      sink,
		logger:    logger,
		onDropped: onDropped,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.ch {
		if err := d.sink.Deliver(context.Background(), event); err != nil {
			// Best effort only. A failed delivery must never surface to the
			// operation that produced the event.
			d.logger.Error("notification delivery failed",
				"error", err,
				"type", string(event.Type),
				"class_id", event.ClassID,
			)
		}
	}
}

// Enqueue hands an event to the worker without blocking. When the buffer is
// full the event is dropped and counted.
func (d *Dispatcher) Enqueue(event Event) {
	select {
	case d.ch <- event:
	default:
		d.logger.Warn("notification dropped, buffer full",
			"type", string(event.Type),
			"class_id", event.ClassID,
		)
		if d.onDropped != nil {
			d.onDropped()
		}
	}
}

// Close stops the worker after draining buffered events.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.ch)
	})
	d.wg.Wait()
}
