package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"olympiad-engine/clock"
)

// Scheduler drives Engine.Tick on a fixed interval.
type Scheduler struct {
	engine   *Engine
	clock    clock.Clock
	interval time.Duration
	log      logrus.FieldLogger
}

// NewScheduler uses the engine's clock and logger.
func NewScheduler(e *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   e,
		clock:    e.clock,
		interval: interval,
		log:      e.log,
	}
}

// Run ticks until ctx is canceled. One tick runs at a time; a failed tick
// is logged and the next one proceeds.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.engine.Tick(ctx); err != nil {
				s.log.WithError(err).Error("scheduler tick failed")
			}
		}
	}
}
