package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"netmonitor/internal/logger"
	"netmonitor/internal/models"
	"netmonitor/internal/monitor"
	"netmonitor/internal/speedtest"
	"netmonitor/internal/storage"
)

var checkSpeedtest bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single cycle and print the readings",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkSpeedtest, "speedtest", false, "include a bandwidth measurement")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Logging)

	series := storage.NewSeries(cfg.Targets())
	var sampler monitor.BandwidthSampler
	if checkSpeedtest {
		sampler = speedtest.NewSampler(speedtest.NewNetBackend(), 1, cfg.SpeedtestTimeout())
	}
	orch := monitor.NewOrchestrator(series, newRunner(cfg), sampler, cfg.Workers)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sample, err := orch.RunCycle(ctx, 1)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return printSample(cmd.OutOrStdout(), series.Targets(), sample)
}

func printSample(out io.Writer, targets []models.Target, sample models.Sample) error {
	good := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed, color.Bold).SprintFunc()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TARGET\tKIND\tREADING\n")
	for _, target := range targets {
		m := sample.Measurement(target)
		text := m.Format(target.Kind)
		switch {
		case !m.Available, target.Kind == models.KindPort && !m.Reachable:
			text = bad(text)
		default:
			text = good(text)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", target.Address(), target.Kind, text)
	}
	if sample.SpeedAttempted {
		fmt.Fprintf(w, "download\tbandwidth\t%s\n", colorBandwidth(sample.DownloadText(), good, bad))
		fmt.Fprintf(w, "upload\tbandwidth\t%s\n", colorBandwidth(sample.UploadText(), good, bad))
	}
	return w.Flush()
}

func colorBandwidth(text string, good, bad func(...interface{}) string) string {
	if text == models.UnavailableMarker {
		return bad(text)
	}
	return good(text)
}
