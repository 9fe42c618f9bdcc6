package probe

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"netmonitor/internal/models"
)

const defaultTimeout = 5 * time.Second

// Checker performs one kind of check. Implementations should honour the
// context deadline; the Runner enforces it regardless.
type Checker interface {
	Check(ctx context.Context, target models.Target) models.Measurement
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, target models.Target) models.Measurement

func (f CheckerFunc) Check(ctx context.Context, target models.Target) models.Measurement {
	return f(ctx, target)
}

// Options configures a Runner.
type Options struct {
	Timeouts       map[models.TargetKind]time.Duration
	PingPrivileged bool
}

// Runner dispatches targets to the checker registered for their kind and
// bounds every check by the kind's timeout.
type Runner struct {
	checkers map[models.TargetKind]Checker
	timeouts map[models.TargetKind]time.Duration
}

// NewRunner returns a runner with the HTTP, DNS, port and ping checkers registered.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		checkers: make(map[models.TargetKind]Checker),
		timeouts: make(map[models.TargetKind]time.Duration),
	}
	for kind, timeout := range opts.Timeouts {
		r.timeouts[kind] = timeout
	}
	r.Register(models.KindHTTP, NewHTTPChecker())
	r.Register(models.KindDNS, NewDNSChecker())
	r.Register(models.KindPort, NewPortChecker())
	r.Register(models.KindPing, NewPingChecker(opts.PingPrivileged))
	return r
}

// Register installs or replaces the checker for a kind.
func (r *Runner) Register(kind models.TargetKind, checker Checker) {
	r.checkers[kind] = checker
}

// Timeout returns the bound applied to checks of the given kind.
func (r *Runner) Timeout(kind models.TargetKind) time.Duration {
	if timeout, ok := r.timeouts[kind]; ok && timeout > 0 {
		return timeout
	}
	return defaultTimeout
}

// Probe runs a single check. It always returns within the kind's timeout and
// never fails: problems become an unavailable measurement (or false for ports).
func (r *Runner) Probe(ctx context.Context, target models.Target) models.Measurement {
	checker, ok := r.checkers[target.Kind]
	if !ok {
		log.Warn().Str("target", target.ID()).Msg("no checker for target kind")
		return models.Unavailable()
	}

	checkCtx, cancel := context.WithTimeout(ctx, r.Timeout(target.Kind))
	defer cancel()

	resultCh := make(chan models.Measurement, 1)
	go func() {
		resultCh <- checker.Check(checkCtx, target)
	}()

	var result models.Measurement
	select {
	case result = <-resultCh:
	case <-checkCtx.Done():
		result = failed(target.Kind)
	}

	event := log.Debug().Str("target", target.ID()).Bool("available", result.Available)
	if target.Kind == models.KindPort {
		event = event.Bool("reachable", result.Reachable)
	} else if result.Available {
		event = event.Float64("latency_ms", result.LatencyMS)
	}
	event.Msg("probe finished")
	return result
}

// failed is the measurement recorded when a check cannot complete.
func failed(kind models.TargetKind) models.Measurement {
	if kind == models.KindPort {
		return models.Reachability(false)
	}
	return models.Unavailable()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
