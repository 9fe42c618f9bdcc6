package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"netmonitor/internal/models"
)

// ErrNoTargets is returned when the configuration defines nothing to probe.
var ErrNoTargets = errors.New("configuration must define at least one target")

// Config represents configuration data for the monitoring run.
type Config struct {
	IntervalSeconds         int           `yaml:"interval_seconds"`
	DurationSeconds         int           `yaml:"duration_seconds"`
	SpeedtestEvery          int           `yaml:"speedtest_every"`
	SpeedtestTimeoutSeconds int           `yaml:"speedtest_timeout_seconds"`
	Workers                 int           `yaml:"workers"`
	Timeouts                Timeouts      `yaml:"timeouts"`
	Sites                   []string      `yaml:"sites"`
	DNSServers              []string      `yaml:"dns_servers"`
	PortHost                string        `yaml:"port_host"`
	Ports                   []int         `yaml:"ports"`
	PingHosts               []string      `yaml:"ping_hosts"`
	PingPrivileged          bool          `yaml:"ping_privileged"`
	Output                  Output        `yaml:"output"`
	Influx                  Influx        `yaml:"influx"`
	Server                  Server        `yaml:"server"`
	Logging                 LoggingConfig `yaml:"logging"`
}

// Timeouts bounds each probe kind.
type Timeouts struct {
	HTTPSeconds float64 `yaml:"http_seconds"`
	DNSSeconds  float64 `yaml:"dns_seconds"`
	PortSeconds float64 `yaml:"port_seconds"`
	PingSeconds float64 `yaml:"ping_seconds"`
}

// Output lists the files rewritten after every cycle. Empty paths are skipped.
type Output struct {
	CSV   string `yaml:"csv"`
	Chart string `yaml:"chart"`
	JSON  string `yaml:"json"`
}

// Influx configures the optional InfluxDB sink.
type Influx struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether samples should be written to InfluxDB.
func (i Influx) Enabled() bool {
	return i.URL != ""
}

// Server configures the optional dashboard.
type Server struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig selects the log level and format (json or console).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the stock target list and cadence.
func DefaultConfig() Config {
	return Config{
		IntervalSeconds:         180,
		DurationSeconds:         1800,
		SpeedtestEvery:          3,
		SpeedtestTimeoutSeconds: 120,
		Workers:                 8,
		Timeouts: Timeouts{
			HTTPSeconds: 5,
			DNSSeconds:  2,
			PortSeconds: 2,
			PingSeconds: 2,
		},
		Sites: []string{
			"https://www.google.com",
			"https://www.office.com",
			"https://chat.google.com",
			"https://www.canva.com/es_es/",
			"https://us04web.zoom.us/s",
			"https://presencial.uagrm.edu.bo/",
			"https://virtual.uagrm.edu.bo/",
			"https://meet.google.com",
		},
		DNSServers: []string{"172.21.1.7", "8.8.8.8"},
		PortHost:   "example.com",
		Ports:      []int{80, 443, 3389},
		Output: Output{
			CSV:   "network_monitoring_report.csv",
			Chart: "network_monitoring_plot.png",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(content)
}

// Parse decodes yaml content on top of the defaults and validates the result.
func Parse(content []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyFallbacks()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFallbacks() {
	defaults := DefaultConfig()
	if c.SpeedtestEvery < 0 {
		c.SpeedtestEvery = 0
	}
	if c.SpeedtestTimeoutSeconds <= 0 {
		c.SpeedtestTimeoutSeconds = defaults.SpeedtestTimeoutSeconds
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.Timeouts.HTTPSeconds <= 0 {
		c.Timeouts.HTTPSeconds = defaults.Timeouts.HTTPSeconds
	}
	if c.Timeouts.DNSSeconds <= 0 {
		c.Timeouts.DNSSeconds = defaults.Timeouts.DNSSeconds
	}
	if c.Timeouts.PortSeconds <= 0 {
		c.Timeouts.PortSeconds = defaults.Timeouts.PortSeconds
	}
	if c.Timeouts.PingSeconds <= 0 {
		c.Timeouts.PingSeconds = defaults.Timeouts.PingSeconds
	}
	if c.PortHost == "" {
		c.PortHost = defaults.PortHost
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
}

// Validate rejects configurations that cannot produce an aligned series.
func (c Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return errors.New("interval_seconds must be positive")
	}
	if c.DurationSeconds <= 0 {
		return errors.New("duration_seconds must be positive")
	}
	for _, site := range c.Sites {
		u, err := url.Parse(site)
		if err != nil {
			return fmt.Errorf("site %q: %w", site, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("site %q must be an absolute http(s) URL", site)
		}
	}
	for _, resolver := range c.DNSServers {
		if _, err := models.ResolverIP(resolver); err != nil {
			return err
		}
	}
	for _, port := range c.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port %d out of range", port)
		}
	}
	for _, host := range c.PingHosts {
		if strings.TrimSpace(host) == "" {
			return errors.New("ping_hosts entries must not be empty")
		}
	}

	targets := c.Targets()
	if len(targets) == 0 {
		return ErrNoTargets
	}
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if _, ok := seen[t.ID()]; ok {
			return fmt.Errorf("duplicate target %s", t.ID())
		}
		seen[t.ID()] = struct{}{}
	}
	return nil
}

// Targets expands the configured lists in report column order: sites, DNS
// servers, ports, ping hosts.
func (c Config) Targets() []models.Target {
	targets := make([]models.Target, 0, len(c.Sites)+len(c.DNSServers)+len(c.Ports)+len(c.PingHosts))
	for _, site := range c.Sites {
		targets = append(targets, models.HTTPTarget(site))
	}
	for _, resolver := range c.DNSServers {
		targets = append(targets, models.DNSTarget(resolver))
	}
	for _, port := range c.Ports {
		targets = append(targets, models.PortTarget(c.PortHost, port))
	}
	for _, host := range c.PingHosts {
		targets = append(targets, models.PingTarget(strings.TrimSpace(host)))
	}
	return targets
}

// Interval returns the wait between cycle completions.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Duration returns the total run budget.
func (c Config) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// SpeedtestTimeout bounds a whole download+upload measurement.
func (c Config) SpeedtestTimeout() time.Duration {
	return time.Duration(c.SpeedtestTimeoutSeconds) * time.Second
}

// TimeoutFor returns the probe timeout for a target kind.
func (c Config) TimeoutFor(kind models.TargetKind) time.Duration {
	var seconds float64
	switch kind {
	case models.KindHTTP:
		seconds = c.Timeouts.HTTPSeconds
	case models.KindDNS:
		seconds = c.Timeouts.DNSSeconds
	case models.KindPort:
		seconds = c.Timeouts.PortSeconds
	default:
		seconds = c.Timeouts.PingSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}
