package probe

import (
	"context"
	"net"

	"netmonitor/internal/models"
)

// PortChecker reports whether a TCP connection to host:port can be opened.
type PortChecker struct {
	dialer net.Dialer
}

func NewPortChecker() *PortChecker {
	return &PortChecker{}
}

func (c *PortChecker) Check(ctx context.Context, target models.Target) models.Measurement {
	conn, err := c.dialer.DialContext(ctx, "tcp", target.Address())
	if err != nil {
		return models.Reachability(false)
	}
	_ = conn.Close()
	return models.Reachability(true)
}
