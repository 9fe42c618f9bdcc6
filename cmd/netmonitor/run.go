package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"netmonitor/internal/config"
	"netmonitor/internal/export"
	"netmonitor/internal/logger"
	"netmonitor/internal/metrics"
	"netmonitor/internal/models"
	"netmonitor/internal/monitor"
	"netmonitor/internal/probe"
	"netmonitor/internal/server"
	"netmonitor/internal/speedtest"
	"netmonitor/internal/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample the configured targets until the duration elapses",
	RunE:  runMonitor,
}

func init() {
	runCmd.Flags().Int("interval", 0, "seconds between cycles (overrides interval_seconds)")
	runCmd.Flags().Int("duration", 0, "total run time in seconds (overrides duration_seconds)")
	runCmd.Flags().Int("speedtest-every", 0, "run the speed test every N cycles, 0 disables (overrides speedtest_every)")
	runCmd.Flags().String("addr", "", "dashboard listen address (overrides server.addr)")
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.IntervalSeconds, _ = flags.GetInt("interval")
	}
	if flags.Changed("duration") {
		cfg.DurationSeconds, _ = flags.GetInt("duration")
	}
	if flags.Changed("speedtest-every") {
		cfg.SpeedtestEvery, _ = flags.GetInt("speedtest-every")
	}
	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	return cfg.Validate()
}

func newRunner(cfg config.Config) *probe.Runner {
	timeouts := make(map[models.TargetKind]time.Duration)
	for _, kind := range []models.TargetKind{models.KindHTTP, models.KindDNS, models.KindPort, models.KindPing} {
		timeouts[kind] = cfg.TimeoutFor(kind)
	}
	return probe.NewRunner(probe.Options{Timeouts: timeouts, PingPrivileged: cfg.PingPrivileged})
}

func fileExporters(out config.Output) []monitor.Exporter {
	var exporters []monitor.Exporter
	if out.CSV != "" {
		exporters = append(exporters, export.NewCSVExporter(out.CSV))
	}
	if out.Chart != "" {
		exporters = append(exporters, export.NewChartExporter(out.Chart))
	}
	if out.JSON != "" {
		exporters = append(exporters, export.NewJSONExporter(out.JSON))
	}
	return exporters
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, &cfg); err != nil {
		return err
	}
	logger.Init(cfg.Logging)

	targets := cfg.Targets()
	series := storage.NewSeries(targets)
	sampler := speedtest.NewSampler(speedtest.NewNetBackend(), cfg.SpeedtestEvery, cfg.SpeedtestTimeout())
	orch := monitor.NewOrchestrator(series, newRunner(cfg), sampler, cfg.Workers)

	exporters := fileExporters(cfg.Output)
	if cfg.Influx.Enabled() {
		influx := export.NewInfluxExporter(cfg.Influx)
		defer influx.Close()
		exporters = append(exporters, influx)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Addr != "" {
		dashboard := server.New(cfg.Server.Addr, series)
		exporters = append(exporters, dashboard)
		go func() {
			if err := dashboard.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.Server.Addr).Msg("dashboard stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := dashboard.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("dashboard shutdown")
			}
		}()
		log.Info().Str("addr", cfg.Server.Addr).Msg("dashboard listening")
	}

	log.Info().
		Str("config", cfgFile).
		Int("exporters", len(exporters)).
		Int("speedtest_every", cfg.SpeedtestEvery).
		Bool("influx", cfg.Influx.Enabled()).
		Msg("configuration loaded")

	err = monitor.NewScheduler(orch, series, cfg.Interval(), cfg.Duration(), exporters...).Run(ctx)
	logSummary(metrics.ComputeSummary(series.Snapshot()))

	if errors.Is(err, context.Canceled) {
		log.Info().Int("samples", series.Len()).Msg("interrupted, partial results kept")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("csv", cfg.Output.CSV).Str("chart", cfg.Output.Chart).Str("json", cfg.Output.JSON).Msg("reports written")
	return nil
}

func logSummary(summary metrics.Summary) {
	for _, target := range summary.Targets {
		event := log.Info().
			Str("target", target.Column).
			Int("checks", target.TotalChecks).
			Float64("availability_percent", target.AvailabilityPercent)
		if target.Latency != nil {
			event = event.Float64("avg_ms", target.Latency.AvgMS).Float64("max_ms", target.Latency.MaxMS)
		}
		if target.Kind == models.KindPort {
			event = event.Float64("reachable_percent", target.ReachablePercent)
		}
		event.Msg("target summary")
	}
	if summary.Bandwidth.Attempts > 0 {
		log.Info().
			Int("attempts", summary.Bandwidth.Attempts).
			Int("successes", summary.Bandwidth.Successes).
			Float64("avg_download_mbps", summary.Bandwidth.AvgDownloadMbps).
			Float64("avg_upload_mbps", summary.Bandwidth.AvgUploadMbps).
			Msg("bandwidth summary")
	}
}
