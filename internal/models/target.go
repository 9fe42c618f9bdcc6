package models

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// TargetKind identifies which probe handles a target.
type TargetKind string

const (
	KindHTTP TargetKind = "http"
	KindDNS  TargetKind = "dns"
	KindPort TargetKind = "port"
	KindPing TargetKind = "ping"
)

// Column prefixes used by the tabular report.
const (
	httpColumnPrefix = "Latency_"
	dnsColumnPrefix  = "DNS_"
	portColumnPrefix = "Port_"
	pingColumnPrefix = "Ping_"
)

// ErrUnknownColumn is returned when a report header does not name a target.
var ErrUnknownColumn = errors.New("unknown target column")

// Target defines a monitored endpoint. Only the fields relevant to Kind are set.
type Target struct {
	Kind     TargetKind `json:"kind" yaml:"kind"`
	URL      string     `json:"url,omitempty" yaml:"url,omitempty"`
	Resolver string     `json:"resolver,omitempty" yaml:"resolver,omitempty"`
	Host     string     `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int        `json:"port,omitempty" yaml:"port,omitempty"`
}

// HTTPTarget returns a target probed with an HTTP GET.
func HTTPTarget(url string) Target {
	return Target{Kind: KindHTTP, URL: url}
}

// DNSTarget returns a target measuring reverse resolution against a resolver.
func DNSTarget(resolver string) Target {
	return Target{Kind: KindDNS, Resolver: resolver}
}

// PortTarget returns a target checking TCP reachability of host:port.
func PortTarget(host string, port int) Target {
	return Target{Kind: KindPort, Host: host, Port: port}
}

// PingTarget returns a target measuring ICMP echo latency.
func PingTarget(host string) Target {
	return Target{Kind: KindPing, Host: host}
}

// Address returns the dialable form of the target.
func (t Target) Address() string {
	switch t.Kind {
	case KindHTTP:
		return t.URL
	case KindDNS:
		return t.Resolver
	case KindPort:
		return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	default:
		return t.Host
	}
}

// ID is the stable identity of the target; Sample measurements are keyed by it.
func (t Target) ID() string {
	return string(t.Kind) + ":" + t.Address()
}

// Column returns the report header for the target.
func (t Target) Column() string {
	switch t.Kind {
	case KindHTTP:
		return httpColumnPrefix + t.URL
	case KindDNS:
		return dnsColumnPrefix + t.Resolver
	case KindPort:
		return portColumnPrefix + t.Address()
	case KindPing:
		return pingColumnPrefix + t.Host
	default:
		return t.ID()
	}
}

func (t Target) String() string {
	return t.ID()
}

// ParseColumn reverses Target.Column.
func ParseColumn(column string) (Target, error) {
	switch {
	case strings.HasPrefix(column, httpColumnPrefix):
		return HTTPTarget(strings.TrimPrefix(column, httpColumnPrefix)), nil
	case strings.HasPrefix(column, dnsColumnPrefix):
		return DNSTarget(strings.TrimPrefix(column, dnsColumnPrefix)), nil
	case strings.HasPrefix(column, pingColumnPrefix):
		return PingTarget(strings.TrimPrefix(column, pingColumnPrefix)), nil
	case strings.HasPrefix(column, portColumnPrefix):
		host, rawPort, err := net.SplitHostPort(strings.TrimPrefix(column, portColumnPrefix))
		if err != nil {
			return Target{}, fmt.Errorf("parse port column %q: %w", column, err)
		}
		port, err := strconv.Atoi(rawPort)
		if err != nil {
			return Target{}, fmt.Errorf("parse port column %q: %w", column, err)
		}
		return PortTarget(host, port), nil
	}
	return Target{}, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
}

// ResolverIP extracts the IP literal from a resolver address with optional port.
func ResolverIP(resolver string) (net.IP, error) {
	host := resolver
	if h, _, err := net.SplitHostPort(resolver); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("dns server %q must be an IP address", resolver)
	}
	return ip, nil
}

// ResolverAddress returns the resolver as host:port, defaulting to port 53.
func ResolverAddress(resolver string) string {
	if _, _, err := net.SplitHostPort(resolver); err == nil {
		return resolver
	}
	return net.JoinHostPort(strings.Trim(resolver, "[]"), "53")
}
