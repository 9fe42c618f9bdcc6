package speedtest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"netmonitor/internal/models"
)

const bitsPerMegabit = 1_000_000

// Backend runs one download+upload measurement and reports bits per second.
type Backend interface {
	Measure(ctx context.Context) (downloadBps, uploadBps float64, err error)
}

// Sampler runs the bandwidth test on every Nth cycle.
type Sampler struct {
	backend Backend
	every   int
	timeout time.Duration
}

// NewSampler returns a sampler that is due when cycle%every == 0. A
// non-positive every disables it.
func NewSampler(backend Backend, every int, timeout time.Duration) *Sampler {
	return &Sampler{backend: backend, every: every, timeout: timeout}
}

// Due reports whether the bandwidth test should run on this 1-based cycle.
func (s *Sampler) Due(cycle int) bool {
	if s == nil || s.backend == nil || s.every <= 0 {
		return false
	}
	return cycle%s.every == 0
}

// Sample measures bandwidth. Any failure yields nil: both values are absent,
// never just one.
func (s *Sampler) Sample(ctx context.Context) *models.Bandwidth {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	down, up, err := s.backend.Measure(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("speed test failed")
		return nil
	}

	bw := &models.Bandwidth{
		DownloadMbps: down / bitsPerMegabit,
		UploadMbps:   up / bitsPerMegabit,
	}
	log.Info().
		Float64("download_mbps", bw.DownloadMbps).
		Float64("upload_mbps", bw.UploadMbps).
		Dur("took", time.Since(started)).
		Msg("speed test finished")
	return bw
}
