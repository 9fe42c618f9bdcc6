package export

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"

	"netmonitor/internal/config"
	"netmonitor/internal/models"
	"netmonitor/internal/storage"
)

// InfluxExporter writes each new sample as points. Unlike the file exporters
// it is best effort: write failures are logged and the run continues.
type InfluxExporter struct {
	client    influxdb2.Client
	writeAPI  api.WriteAPIBlocking
	lastCycle int
}

func NewInfluxExporter(cfg config.Influx) *InfluxExporter {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxExporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

func (e *InfluxExporter) Name() string { return "influxdb" }

func (e *InfluxExporter) Export(ctx context.Context, snapshot storage.Snapshot) error {
	latest, ok := snapshot.Latest()
	if !ok || latest.Cycle <= e.lastCycle {
		return nil
	}

	points := SamplePoints(snapshot.RunID, snapshot.Targets, latest)
	if err := e.writeAPI.WritePoint(ctx, points...); err != nil {
		log.Warn().Err(err).Int("cycle", latest.Cycle).Msg("influx write failed")
		return nil
	}
	e.lastCycle = latest.Cycle
	return nil
}

// Close releases the client's connections.
func (e *InfluxExporter) Close() {
	e.client.Close()
}

// SamplePoints converts one sample to a "probe" point per target plus a
// "bandwidth" point when a speed test result exists.
func SamplePoints(runID string, targets []models.Target, sample models.Sample) []*write.Point {
	points := make([]*write.Point, 0, len(targets)+1)
	for _, target := range targets {
		m := sample.Measurement(target)
		fields := map[string]interface{}{"available": m.Available}
		if target.Kind == models.KindPort {
			fields["reachable"] = m.Reachable
		} else if m.Available {
			fields["latency_ms"] = m.LatencyMS
		}
		tags := map[string]string{
			"run":    runID,
			"kind":   string(target.Kind),
			"target": target.Address(),
		}
		points = append(points, influxdb2.NewPoint("probe", tags, fields, sample.Timestamp))
	}
	if sample.Bandwidth != nil {
		points = append(points, influxdb2.NewPoint("bandwidth",
			map[string]string{"run": runID},
			map[string]interface{}{
				"download_mbps": sample.Bandwidth.DownloadMbps,
				"upload_mbps":   sample.Bandwidth.UploadMbps,
			},
			sample.Timestamp))
	}
	return points
}
