package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netmonitor/internal/models"
	"netmonitor/internal/speedtest"
	"netmonitor/internal/storage"
)

type fakeProber struct {
	delay   time.Duration
	results map[string]models.Measurement
	onProbe func()
	calls   atomic.Int32
}

func (p *fakeProber) Probe(ctx context.Context, target models.Target) models.Measurement {
	p.calls.Add(1)
	if p.onProbe != nil {
		p.onProbe()
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return models.Unavailable()
		}
	}
	if m, ok := p.results[target.ID()]; ok {
		return m
	}
	if target.Kind == models.KindPort {
		return models.Reachability(false)
	}
	return models.Unavailable()
}

type fakeBackend struct {
	calls atomic.Int32
}

func (b *fakeBackend) Measure(ctx context.Context) (float64, float64, error) {
	b.calls.Add(1)
	return 50_000_000, 10_000_000, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type recordingExporter struct {
	lengths []int
	err     error
}

func (e *recordingExporter) Name() string { return "recording" }

func (e *recordingExporter) Export(_ context.Context, snapshot storage.Snapshot) error {
	e.lengths = append(e.lengths, len(snapshot.Samples))
	return e.err
}

func testTargets() []models.Target {
	return []models.Target{
		models.HTTPTarget("https://example.com"),
		models.HTTPTarget("https://example.org"),
		models.DNSTarget("8.8.8.8"),
		models.PortTarget("example.com", 443),
	}
}

func TestRunCycleAllProbesFailStillAligned(t *testing.T) {
	series := storage.NewSeries(testTargets())
	orch := NewOrchestrator(series, &fakeProber{}, nil, 4)

	sample, err := orch.RunCycle(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, sample.Measurements, len(testTargets()))
	for _, target := range testTargets() {
		m, ok := sample.Measurements[target.ID()]
		require.True(t, ok, target.ID())
		if target.Kind == models.KindPort {
			assert.Equal(t, models.Reachability(false), m)
		} else {
			assert.False(t, m.Available)
		}
	}
	assert.Nil(t, sample.Bandwidth)
	assert.False(t, sample.SpeedAttempted)
	assert.Equal(t, 1, series.Len())
	assert.Equal(t, StateIdle, orch.State())
}

func TestRunCycleProbesConcurrently(t *testing.T) {
	series := storage.NewSeries(testTargets())
	prober := &fakeProber{delay: 200 * time.Millisecond}
	orch := NewOrchestrator(series, prober, nil, len(testTargets()))

	start := time.Now()
	_, err := orch.RunCycle(context.Background(), 1)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*200*time.Millisecond)
	assert.Equal(t, int32(len(testTargets())), prober.calls.Load())
}

func TestRunCycleReportsProbingState(t *testing.T) {
	series := storage.NewSeries(testTargets())
	var orch *Orchestrator
	var seen []State
	var mu sync.Mutex
	prober := &fakeProber{onProbe: func() {
		mu.Lock()
		seen = append(seen, orch.State())
		mu.Unlock()
	}}
	orch = NewOrchestrator(series, prober, nil, 1)

	_, err := orch.RunCycle(context.Background(), 1)
	require.NoError(t, err)
	for _, state := range seen {
		assert.Equal(t, StateProbing, state)
	}
	assert.Equal(t, "idle", orch.State().String())
}

func TestRunCycleCancelledIsDiscarded(t *testing.T) {
	series := storage.NewSeries(testTargets())
	ctx, cancel := context.WithCancel(context.Background())
	prober := &fakeProber{delay: time.Minute}
	orch := NewOrchestrator(series, prober, nil, 4)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := orch.RunCycle(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, series.Len())
}

func TestRunCycleTimestampNeverGoesBackwards(t *testing.T) {
	series := storage.NewSeries(testTargets())
	orch := NewOrchestrator(series, &fakeProber{}, nil, 2)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	orch.now = func() time.Time { return base }
	_, err := orch.RunCycle(context.Background(), 1)
	require.NoError(t, err)

	orch.now = func() time.Time { return base.Add(-time.Hour) }
	sample, err := orch.RunCycle(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, base, sample.Timestamp)
	assert.Equal(t, 2, series.Len())
}

func TestSpeedSamplerRunsOnlyOnDueCycles(t *testing.T) {
	series := storage.NewSeries(testTargets())
	backend := &fakeBackend{}
	sampler := speedtest.NewSampler(backend, 3, time.Second)
	orch := NewOrchestrator(series, &fakeProber{}, sampler, 4)

	for cycle := 1; cycle <= 7; cycle++ {
		sample, err := orch.RunCycle(context.Background(), cycle)
		require.NoError(t, err)
		if cycle%3 == 0 {
			assert.True(t, sample.SpeedAttempted, "cycle %d", cycle)
			require.NotNil(t, sample.Bandwidth, "cycle %d", cycle)
			assert.InDelta(t, 50.0, sample.Bandwidth.DownloadMbps, 1e-9)
			assert.InDelta(t, 10.0, sample.Bandwidth.UploadMbps, 1e-9)
		} else {
			assert.False(t, sample.SpeedAttempted, "cycle %d", cycle)
			assert.Nil(t, sample.Bandwidth, "cycle %d", cycle)
		}
	}
	assert.Equal(t, int32(2), backend.calls.Load())
}

func TestSchedulerThreeCycleScenario(t *testing.T) {
	targets := []models.Target{models.HTTPTarget("https://example.com")}
	series := storage.NewSeries(targets)
	clock := newFakeClock()
	backend := &fakeBackend{}
	orch := NewOrchestrator(series, &fakeProber{}, speedtest.NewSampler(backend, 3, time.Second), 4)
	orch.now = clock.Now
	exporter := &recordingExporter{}

	err := NewScheduler(orch, series, time.Second, 3*time.Second, exporter).WithClock(clock).Run(context.Background())
	require.NoError(t, err)

	snap := series.Snapshot()
	require.Len(t, snap.Samples, 3)
	assert.False(t, snap.Samples[0].SpeedAttempted)
	assert.Nil(t, snap.Samples[0].Bandwidth)
	assert.False(t, snap.Samples[1].SpeedAttempted)
	assert.Nil(t, snap.Samples[1].Bandwidth)
	assert.True(t, snap.Samples[2].SpeedAttempted)
	assert.Equal(t, int32(1), backend.calls.Load())

	for i, sample := range snap.Samples {
		assert.Equal(t, i+1, sample.Cycle)
		if i > 0 {
			assert.False(t, sample.Timestamp.Before(snap.Samples[i-1].Timestamp))
		}
	}
	assert.Equal(t, []int{1, 2, 3}, exporter.lengths)
}

func TestSchedulerSeriesLengthMatchesCycles(t *testing.T) {
	series := storage.NewSeries(testTargets())
	clock := newFakeClock()
	orch := NewOrchestrator(series, &fakeProber{}, nil, 4)
	orch.now = clock.Now

	err := NewScheduler(orch, series, 10*time.Second, 95*time.Second).WithClock(clock).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, series.Len())
}

func TestSchedulerExportFailureAborts(t *testing.T) {
	series := storage.NewSeries(testTargets())
	clock := newFakeClock()
	orch := NewOrchestrator(series, &fakeProber{}, nil, 4)
	orch.now = clock.Now
	exporter := &recordingExporter{err: errors.New("disk full")}

	err := NewScheduler(orch, series, time.Second, time.Minute, exporter).WithClock(clock).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export recording")
	assert.Equal(t, 1, series.Len())
}

func TestSchedulerCancelBetweenCycles(t *testing.T) {
	series := storage.NewSeries(testTargets())
	orch := NewOrchestrator(series, &fakeProber{}, nil, 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- NewScheduler(orch, series, time.Hour, 24*time.Hour).Run(ctx)
	}()

	require.Eventually(t, func() bool { return series.Len() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.Equal(t, 1, series.Len())
}
