package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"netmonitor/internal/models"
	"netmonitor/internal/storage"
)

// State is the orchestrator's position within a cycle.
type State int32

const (
	StateIdle State = iota
	StateProbing
	StateAggregating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Prober runs one timeout bounded check and never fails.
type Prober interface {
	Probe(ctx context.Context, target models.Target) models.Measurement
}

// BandwidthSampler is the throttled speed test.
type BandwidthSampler interface {
	Due(cycle int) bool
	Sample(ctx context.Context) *models.Bandwidth
}

// Orchestrator runs one round of probes across all targets and appends the
// resulting sample to the series.
type Orchestrator struct {
	series  *storage.Series
	targets []models.Target
	prober  Prober
	sampler BandwidthSampler
	workers int
	now     func() time.Time

	state atomic.Int32
}

// NewOrchestrator wires the probes for the series' targets. workers bounds how
// many probes run at once; sampler may be nil.
func NewOrchestrator(series *storage.Series, prober Prober, sampler BandwidthSampler, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		series:  series,
		targets: series.Targets(),
		prober:  prober,
		sampler: sampler,
		workers: workers,
		now:     time.Now,
	}
}

// State reports the current cycle phase.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// RunCycle probes every target once, concurrently, then runs the speed test
// when the 1-based cycle index is due. The sample is appended only once it is
// complete; a cancelled cycle is discarded.
func (o *Orchestrator) RunCycle(ctx context.Context, cycle int) (models.Sample, error) {
	if err := ctx.Err(); err != nil {
		return models.Sample{}, err
	}
	defer o.setState(StateIdle)

	o.setState(StateProbing)
	timestamp := o.timestamp()
	results := make([]models.Measurement, len(o.targets))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, target := range o.targets {
		i, target := i, target
		g.Go(func() error {
			results[i] = o.prober.Probe(ctx, target)
			return nil
		})
	}
	_ = g.Wait()

	var (
		bandwidth *models.Bandwidth
		attempted bool
	)
	if o.sampler != nil && o.sampler.Due(cycle) {
		attempted = true
		bandwidth = o.sampler.Sample(ctx)
	}

	if err := ctx.Err(); err != nil {
		log.Warn().Int("cycle", cycle).Msg("cycle cancelled, sample discarded")
		return models.Sample{}, err
	}

	o.setState(StateAggregating)
	sample := models.Sample{
		Cycle:          cycle,
		Timestamp:      timestamp,
		Measurements:   make(map[string]models.Measurement, len(o.targets)),
		Bandwidth:      bandwidth,
		SpeedAttempted: attempted,
	}
	unavailable := 0
	for i, target := range o.targets {
		sample.Measurements[target.ID()] = results[i]
		if !results[i].Available {
			unavailable++
		}
	}
	if err := o.series.Append(sample); err != nil {
		return models.Sample{}, fmt.Errorf("append sample: %w", err)
	}
	o.setState(StateDone)

	log.Info().
		Int("cycle", cycle).
		Int("targets", len(o.targets)).
		Int("unavailable", unavailable).
		Bool("speed_test", attempted).
		Bool("bandwidth", bandwidth != nil).
		Msg("cycle complete")
	return sample, nil
}

// timestamp is the wall clock at cycle start, never earlier than the last
// sample so a clock step back cannot break ordering.
func (o *Orchestrator) timestamp() time.Time {
	ts := o.now().UTC()
	if last, ok := o.series.Latest(); ok && ts.Before(last.Timestamp) {
		return last.Timestamp
	}
	return ts
}
