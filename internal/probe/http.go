package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"netmonitor/internal/models"
)

// HTTPChecker measures the time to fetch a URL. Only a final 200 counts;
// redirects are followed by the client first.
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker builds a checker whose transport opens a fresh connection
// per request, so each reading includes connection setup.
func NewHTTPChecker() *HTTPChecker {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: 5 * time.Second,
		}).DialContext,
		DisableKeepAlives:     true,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &HTTPChecker{client: &http.Client{Transport: transport}}
}

// NewHTTPCheckerWithClient uses the provided client as is.
func NewHTTPCheckerWithClient(client *http.Client) *HTTPChecker {
	return &HTTPChecker{client: client}
}

func (c *HTTPChecker) Check(ctx context.Context, target models.Target) models.Measurement {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return models.Unavailable()
	}

	response, err := c.client.Do(req)
	if err != nil {
		return models.Unavailable()
	}
	defer response.Body.Close()

	if _, err := io.Copy(io.Discard, response.Body); err != nil {
		return models.Unavailable()
	}
	if response.StatusCode != http.StatusOK {
		return models.Unavailable()
	}
	return models.Latency(millis(time.Since(start)))
}
