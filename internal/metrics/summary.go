package metrics

import (
	"math"

	"netmonitor/internal/models"
	"netmonitor/internal/storage"
)

// LatencyStats covers the available readings of a latency target.
type LatencyStats struct {
	MinMS float64 `json:"min_ms"`
	AvgMS float64 `json:"avg_ms"`
	MaxMS float64 `json:"max_ms"`
}

// TargetSummary summarises one target across a run.
type TargetSummary struct {
	ID                  string            `json:"id"`
	Column              string            `json:"column"`
	Kind                models.TargetKind `json:"kind"`
	TotalChecks         int               `json:"total_checks"`
	Available           int               `json:"available"`
	AvailabilityPercent float64           `json:"availability_percent"`
	Latency             *LatencyStats     `json:"latency,omitempty"`
	Reachable           int               `json:"reachable,omitempty"`
	ReachablePercent    float64           `json:"reachable_percent,omitempty"`
}

// BandwidthSummary covers the speed test cycles of a run.
type BandwidthSummary struct {
	Attempts         int     `json:"attempts"`
	Successes        int     `json:"successes"`
	AvgDownloadMbps  float64 `json:"avg_download_mbps,omitempty"`
	AvgUploadMbps    float64 `json:"avg_upload_mbps,omitempty"`
	PeakDownloadMbps float64 `json:"peak_download_mbps,omitempty"`
}

// Summary is the run level aggregate served by the dashboard and logged at
// the end of a run.
type Summary struct {
	RunID     string           `json:"run_id"`
	Samples   int              `json:"samples"`
	Targets   []TargetSummary  `json:"targets"`
	Bandwidth BandwidthSummary `json:"bandwidth"`
}

// ComputeSummary aggregates a snapshot. Targets keep their configured order.
func ComputeSummary(snapshot storage.Snapshot) Summary {
	summary := Summary{
		RunID:   snapshot.RunID,
		Samples: len(snapshot.Samples),
		Targets: make([]TargetSummary, 0, len(snapshot.Targets)),
	}
	for _, target := range snapshot.Targets {
		summary.Targets = append(summary.Targets, summariseTarget(target, snapshot.Samples))
	}
	summary.Bandwidth = summariseBandwidth(snapshot.Samples)
	return summary
}

func summariseTarget(target models.Target, samples []models.Sample) TargetSummary {
	type acc struct {
		available int
		reachable int
		sum       float64
		min       float64
		max       float64
	}
	data := acc{min: math.Inf(1), max: math.Inf(-1)}
	for _, sample := range samples {
		m := sample.Measurement(target)
		if !m.Available {
			continue
		}
		data.available++
		if target.Kind == models.KindPort {
			if m.Reachable {
				data.reachable++
			}
			continue
		}
		data.sum += m.LatencyMS
		data.min = math.Min(data.min, m.LatencyMS)
		data.max = math.Max(data.max, m.LatencyMS)
	}

	result := TargetSummary{
		ID:                  target.ID(),
		Column:              target.Column(),
		Kind:                target.Kind,
		TotalChecks:         len(samples),
		Available:           data.available,
		AvailabilityPercent: percent(data.available, len(samples)),
	}
	if target.Kind == models.KindPort {
		result.Reachable = data.reachable
		result.ReachablePercent = percent(data.reachable, len(samples))
		return result
	}
	if data.available > 0 {
		result.Latency = &LatencyStats{
			MinMS: round2(data.min),
			AvgMS: round2(data.sum / float64(data.available)),
			MaxMS: round2(data.max),
		}
	}
	return result
}

func summariseBandwidth(samples []models.Sample) BandwidthSummary {
	var result BandwidthSummary
	var down, up float64
	for _, sample := range samples {
		if sample.SpeedAttempted {
			result.Attempts++
		}
		if sample.Bandwidth == nil {
			continue
		}
		result.Successes++
		down += sample.Bandwidth.DownloadMbps
		up += sample.Bandwidth.UploadMbps
		result.PeakDownloadMbps = math.Max(result.PeakDownloadMbps, sample.Bandwidth.DownloadMbps)
	}
	if result.Successes > 0 {
		result.AvgDownloadMbps = round2(down / float64(result.Successes))
		result.AvgUploadMbps = round2(up / float64(result.Successes))
		result.PeakDownloadMbps = round2(result.PeakDownloadMbps)
	}
	return result
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
