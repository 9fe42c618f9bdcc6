package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netmonitor/internal/config"
	"netmonitor/internal/models"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().AddFlagSet(runCmd.Flags())
	return cmd
}

func TestApplyRunFlagsOverrides(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--interval", "10", "--duration", "60", "--speedtest-every", "0", "--addr", ":9090"}))
	t.Cleanup(func() {
		for _, name := range []string{"interval", "duration", "speedtest-every", "addr"} {
			f := runCmd.Flags().Lookup(name)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})

	cfg := config.DefaultConfig()
	require.NoError(t, applyRunFlags(cmd, &cfg))
	assert.Equal(t, 10, cfg.IntervalSeconds)
	assert.Equal(t, 60, cfg.DurationSeconds)
	assert.Equal(t, 0, cfg.SpeedtestEvery)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestApplyRunFlagsKeepsFileValues(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Parse(nil))

	cfg := config.DefaultConfig()
	require.NoError(t, applyRunFlags(cmd, &cfg))
	assert.Equal(t, 180, cfg.IntervalSeconds)
	assert.Equal(t, 1800, cfg.DurationSeconds)
}

func TestNewRunnerUsesConfiguredTimeouts(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timeouts.DNSSeconds = 1.5
	runner := newRunner(cfg)
	assert.Equal(t, 1500*time.Millisecond, runner.Timeout(models.KindDNS))
	assert.Equal(t, 5*time.Second, runner.Timeout(models.KindHTTP))
}

func TestFileExportersSkipEmptyPaths(t *testing.T) {
	exporters := fileExporters(config.Output{CSV: "a.csv", JSON: "a.json"})
	require.Len(t, exporters, 2)
	assert.Equal(t, "csv", exporters[0].Name())
	assert.Equal(t, "json", exporters[1].Name())
}

func TestPrintSample(t *testing.T) {
	color.NoColor = true
	site := models.HTTPTarget("https://example.com")
	port := models.PortTarget("example.com", 443)
	sample := models.Sample{
		Cycle: 1,
		Measurements: map[string]models.Measurement{
			site.ID(): models.Unavailable(),
			port.ID(): models.Reachability(true),
		},
		Bandwidth:      &models.Bandwidth{DownloadMbps: 42.5, UploadMbps: 7},
		SpeedAttempted: true,
	}

	var buf bytes.Buffer
	require.NoError(t, printSample(&buf, []models.Target{site, port}, sample))
	out := buf.String()
	assert.Contains(t, out, "https://example.com")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "example.com:443")
	assert.Contains(t, out, "true")
	assert.Contains(t, out, "42.5")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "netmonitor dev\n", buf.String())
}
