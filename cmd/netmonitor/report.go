package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"netmonitor/internal/export"
	"netmonitor/internal/logger"
	"netmonitor/internal/metrics"
)

var (
	reportChart string
	reportJSON  string
)

var reportCmd = &cobra.Command{
	Use:   "report [csv]",
	Short: "Re-render the chart and summary from an existing CSV report",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportChart, "chart", "", "chart output path (defaults to output.chart)")
	reportCmd.Flags().StringVar(&reportJSON, "json", "", "also write the parsed snapshot as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Logging)

	source := cfg.Output.CSV
	if len(args) == 1 {
		source = args[0]
	}
	if source == "" {
		return fmt.Errorf("no csv report given")
	}
	chart := reportChart
	if chart == "" {
		chart = cfg.Output.Chart
	}

	snapshot, err := export.ReadCSVFile(source)
	if err != nil {
		return err
	}
	log.Info().Str("source", source).Int("samples", len(snapshot.Samples)).Int("targets", len(snapshot.Targets)).Msg("report loaded")

	ctx := context.Background()
	if chart != "" {
		if err := export.NewChartExporter(chart).Export(ctx, snapshot); err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
		log.Info().Str("chart", chart).Msg("chart written")
	}
	if reportJSON != "" {
		if err := export.NewJSONExporter(reportJSON).Export(ctx, snapshot); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
	}
	logSummary(metrics.ComputeSummary(snapshot))
	return nil
}
