package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"netmonitor/internal/models"
)

var (
	// ErrMisaligned is returned when a sample lacks a slot for a configured
	// target or carries one for an unknown target.
	ErrMisaligned = errors.New("sample does not match configured targets")
	// ErrOutOfOrder is returned when a sample is older than the last one.
	ErrOutOfOrder = errors.New("sample timestamp precedes series tail")
)

// Snapshot is a point-in-time copy of a Series. Samples are never mutated
// after insertion, so a snapshot stays valid while the series grows.
type Snapshot struct {
	RunID   string          `json:"run_id"`
	Targets []models.Target `json:"targets"`
	Samples []models.Sample `json:"samples"`
}

// Latest returns the newest sample if any.
func (s Snapshot) Latest() (models.Sample, bool) {
	if len(s.Samples) == 0 {
		return models.Sample{}, false
	}
	return s.Samples[len(s.Samples)-1], true
}

// Series is the append-only time series of one run. It has a single writer;
// the lock only serves concurrent readers such as the dashboard.
type Series struct {
	mu      sync.RWMutex
	runID   string
	targets []models.Target
	ids     map[string]struct{}
	samples []models.Sample
}

// NewSeries creates an empty series for a fixed target set.
func NewSeries(targets []models.Target) *Series {
	return NewSeriesWithID(uuid.New().String(), targets)
}

// NewSeriesWithID is NewSeries with a caller chosen run id.
func NewSeriesWithID(runID string, targets []models.Target) *Series {
	copied := make([]models.Target, len(targets))
	copy(copied, targets)
	ids := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		ids[t.ID()] = struct{}{}
	}
	return &Series{runID: runID, targets: copied, ids: ids}
}

// RunID identifies the run this series belongs to.
func (s *Series) RunID() string {
	return s.runID
}

// Targets returns the configured targets in column order.
func (s *Series) Targets() []models.Target {
	out := make([]models.Target, len(s.targets))
	copy(out, s.targets)
	return out
}

// Append adds a fully formed sample. Incomplete or out of order samples are
// rejected and leave the series untouched.
func (s *Series) Append(sample models.Sample) error {
	if len(sample.Measurements) != len(s.ids) {
		return fmt.Errorf("%w: %d measurements for %d targets", ErrMisaligned, len(sample.Measurements), len(s.ids))
	}
	for id := range sample.Measurements {
		if _, ok := s.ids[id]; !ok {
			return fmt.Errorf("%w: unexpected target %s", ErrMisaligned, id)
		}
	}

	measurements := make(map[string]models.Measurement, len(sample.Measurements))
	for id, m := range sample.Measurements {
		measurements[id] = m
	}
	sample.Measurements = measurements
	if sample.Bandwidth != nil {
		bw := *sample.Bandwidth
		sample.Bandwidth = &bw
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.samples); n > 0 && sample.Timestamp.Before(s.samples[n-1].Timestamp) {
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder,
			sample.Timestamp.Format(time.RFC3339Nano), s.samples[n-1].Timestamp.Format(time.RFC3339Nano))
	}
	s.samples = append(s.samples, sample)
	return nil
}

// Len returns the number of samples.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Latest returns the latest sample if it exists.
func (s *Series) Latest() (models.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return models.Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Snapshot returns a read-only view of the whole series.
func (s *Series) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := make([]models.Sample, len(s.samples))
	copy(samples, s.samples)
	return Snapshot{RunID: s.runID, Targets: s.Targets(), Samples: samples}
}

// Tail returns up to n of the newest samples, oldest first.
func (s *Series) Tail(n int) []models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.samples) {
		n = len(s.samples)
	}
	out := make([]models.Sample, n)
	copy(out, s.samples[len(s.samples)-n:])
	return out
}

// Since returns samples whose timestamp is >= cutoff.
func (s *Series) Since(cutoff time.Time) []models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return nil
	}
	idx := 0
	if !cutoff.IsZero() {
		idx = sort.Search(len(s.samples), func(i int) bool {
			return !s.samples[i].Timestamp.Before(cutoff)
		})
	}
	if idx >= len(s.samples) {
		return nil
	}
	out := make([]models.Sample, len(s.samples)-idx)
	copy(out, s.samples[idx:])
	return out
}
