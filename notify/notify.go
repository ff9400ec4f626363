// Package notify delivers engine lifecycle events to outside systems.
// Delivery is fire-and-forget: the engine enqueues and moves on.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"olympiad-engine/models"
)

// Kind names an event.
type Kind string

const (
	KindPhaseChanged     Kind = "phase_changed"
	KindResultsPublished Kind = "results_published"
)

// Event is one lifecycle notification.
type Event struct {
	Kind          Kind                      `json:"kind"`
	CompetitionID string                    `json:"competition_id"`
	Subject       string                    `json:"subject"`
	From          models.Phase              `json:"from,omitempty"`
	To            models.Phase              `json:"to"`
	Trigger       string                    `json:"trigger,omitempty"`
	At            time.Time                 `json:"at"`
	Leaderboard   []models.LeaderboardEntry `json:"leaderboard,omitempty"`
}

// Notifier receives events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

const deliveryTimeout = 10 * time.Second

// Dispatcher queues events and fans them out to sinks on its own
// goroutine. When the queue is full new events are dropped.
type Dispatcher struct {
	log   logrus.FieldLogger
	sinks []Notifier
	queue chan Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher with a queue of the given size.
func NewDispatcher(size int, log logrus.FieldLogger, sinks ...Notifier) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		log:   log,
		sinks: sinks,
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues e without blocking. It never returns an error.
func (d *Dispatcher) Notify(_ context.Context, e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}
	select {
	case d.queue <- e:
	default:
		d.log.WithFields(logrus.Fields{
			"kind":           e.Kind,
			"competition_id": e.CompetitionID,
		}).Warn("notification queue full, event dropped")
	}
	return nil
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			if err := sink.Notify(ctx, e); err != nil {
				d.log.WithError(err).WithFields(logrus.Fields{
					"kind":           e.Kind,
					"competition_id": e.CompetitionID,
				}).Warn("notification delivery failed")
			}
			cancel()
		}
	}
}

// LogNotifier writes events to the log.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) Notify(_ context.Context, e Event) error {
	entry := n.Log.WithFields(logrus.Fields{
		"kind":           e.Kind,
		"competition_id": e.CompetitionID,
		"to":             e.To,
	})
	if e.From != "" {
		entry = entry.WithField("from", e.From)
	}
	if e.Kind == KindResultsPublished {
		entry = entry.WithField("ranked", len(e.Leaderboard))
	}
	entry.Info("competition event")
	return nil
}
