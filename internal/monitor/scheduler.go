package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"netmonitor/internal/storage"
)

// Exporter receives the whole series after every cycle.
type Exporter interface {
	Name() string
	Export(ctx context.Context, snapshot storage.Snapshot) error
}

// Clock abstracts waiting so the loop can be driven in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Scheduler drives the orchestrator on a fixed interval until the run
// duration is used up. It is not restartable.
type Scheduler struct {
	orchestrator *Orchestrator
	series       *storage.Series
	exporters    []Exporter
	interval     time.Duration
	duration     time.Duration
	clock        Clock
}

// NewScheduler creates a loop that waits interval between cycle completions
// and stops once duration has elapsed since the first cycle started.
func NewScheduler(orchestrator *Orchestrator, series *storage.Series, interval, duration time.Duration, exporters ...Exporter) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		series:       series,
		exporters:    exporters,
		interval:     interval,
		duration:     duration,
		clock:        realClock{},
	}
}

// WithClock replaces the wall clock.
func (s *Scheduler) WithClock(clock Clock) *Scheduler {
	s.clock = clock
	return s
}

// Run blocks until the duration budget is spent, the context is cancelled, or
// an export fails. Cancellation returns the context error; samples already in
// the series stay intact.
func (s *Scheduler) Run(ctx context.Context) error {
	start := s.clock.Now()
	log.Info().
		Str("run_id", s.series.RunID()).
		Dur("interval", s.interval).
		Dur("duration", s.duration).
		Int("targets", len(s.series.Targets())).
		Msg("monitoring started")

	for cycle := 1; ; cycle++ {
		if s.clock.Now().Sub(start) >= s.duration {
			break
		}

		if _, err := s.orchestrator.RunCycle(ctx, cycle); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("cycle %d: %w", cycle, err)
		}
		if err := s.Export(ctx); err != nil {
			return err
		}

		if s.clock.Now().Add(s.interval).Sub(start) >= s.duration {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.interval):
		}
	}

	log.Info().Int("samples", s.series.Len()).Str("run_id", s.series.RunID()).Msg("monitoring finished")
	return nil
}

// Export hands the current snapshot to every exporter in order.
func (s *Scheduler) Export(ctx context.Context) error {
	snapshot := s.series.Snapshot()
	for _, exp := range s.exporters {
		if err := exp.Export(ctx, snapshot); err != nil {
			return fmt.Errorf("export %s: %w", exp.Name(), err)
		}
	}
	return nil
}
