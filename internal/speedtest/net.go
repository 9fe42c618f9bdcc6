package speedtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	stnet "github.com/showwin/speedtest-go/speedtest"
)

// candidateServers is how many of the nearest servers are pinged when
// picking the one to measure against.
const candidateServers = 5

// NetBackend measures against speedtest.net servers.
type NetBackend struct {
	client *stnet.Speedtest
}

func NewNetBackend() *NetBackend {
	return &NetBackend{client: stnet.New()}
}

func (b *NetBackend) Measure(ctx context.Context) (float64, float64, error) {
	servers, err := b.client.FetchServerListContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch server list: %w", err)
	}
	server, err := bestServer(ctx, servers)
	if err != nil {
		return 0, 0, err
	}

	if err := server.DownloadTestContext(ctx); err != nil {
		return 0, 0, fmt.Errorf("download test: %w", err)
	}
	if err := server.UploadTestContext(ctx); err != nil {
		return 0, 0, fmt.Errorf("upload test: %w", err)
	}

	// DLSpeed and ULSpeed are bytes per second.
	return float64(server.DLSpeed) * 8, float64(server.ULSpeed) * 8, nil
}

// bestServer pings the nearest candidates and keeps the lowest latency one.
func bestServer(ctx context.Context, servers stnet.Servers) (*stnet.Server, error) {
	if len(servers) == 0 {
		return nil, errors.New("no speed test servers available")
	}
	if len(servers) > candidateServers {
		servers = servers[:candidateServers]
	}

	var best *stnet.Server
	for _, server := range servers {
		if err := server.PingTestContext(ctx, func(time.Duration) {}); err != nil {
			continue
		}
		if best == nil || server.Latency < best.Latency {
			best = server
		}
	}
	if best == nil {
		return nil, errors.New("no speed test server answered ping")
	}
	return best, nil
}
