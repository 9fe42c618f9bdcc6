package probe

import (
	"context"
	"time"

	"github.com/miekg/dns"

	"netmonitor/internal/models"
)

// DNSChecker times a reverse (PTR) lookup of the resolver's own address,
// sent to that resolver. Any answer counts, whatever its rcode; only
// transport failures make the reading unavailable.
type DNSChecker struct {
	client *dns.Client
}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{client: &dns.Client{Net: "udp"}}
}

func (c *DNSChecker) Check(ctx context.Context, target models.Target) models.Measurement {
	ip, err := models.ResolverIP(target.Resolver)
	if err != nil {
		return models.Unavailable()
	}
	arpa, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return models.Unavailable()
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	start := time.Now()
	if _, _, err := c.client.ExchangeContext(ctx, msg, models.ResolverAddress(target.Resolver)); err != nil {
		return models.Unavailable()
	}
	return models.Latency(millis(time.Since(start)))
}
