package probe

import (
	"context"
	"time"

	"github.com/go-ping/ping"

	"netmonitor/internal/models"
)

// PingChecker sends a single ICMP echo and reports its round trip time.
// Unprivileged mode uses UDP ping sockets, which Linux only allows when
// net.ipv4.ping_group_range covers the process group.
type PingChecker struct {
	privileged bool
}

func NewPingChecker(privileged bool) *PingChecker {
	return &PingChecker{privileged: privileged}
}

func (c *PingChecker) Check(ctx context.Context, target models.Target) models.Measurement {
	pinger, err := ping.NewPinger(target.Host)
	if err != nil {
		return models.Unavailable()
	}
	pinger.Count = 1
	pinger.SetPrivileged(c.privileged)
	if deadline, ok := ctx.Deadline(); ok {
		pinger.Timeout = time.Until(deadline)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		return models.Unavailable()
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return models.Unavailable()
	}
	return models.Latency(millis(stats.AvgRtt))
}
