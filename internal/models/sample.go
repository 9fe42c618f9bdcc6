package models

import (
	"fmt"
	"strconv"
	"time"
)

// UnavailableMarker is how a missing reading is rendered in text reports.
const UnavailableMarker = "N/A"

// Measurement is the outcome of one probe execution. A probe never fails with
// an error; it produces an unavailable Measurement instead.
type Measurement struct {
	Available bool    `json:"available"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Reachable bool    `json:"reachable,omitempty"`
}

// Latency is a successful timing reading in milliseconds.
func Latency(ms float64) Measurement {
	return Measurement{Available: true, LatencyMS: ms}
}

// Reachability is a port check result. Both outcomes are valid readings.
func Reachability(ok bool) Measurement {
	return Measurement{Available: true, Reachable: ok}
}

// Unavailable marks a probe that could not complete.
func Unavailable() Measurement {
	return Measurement{}
}

// Format renders the measurement for a target of the given kind.
func (m Measurement) Format(kind TargetKind) string {
	if !m.Available {
		return UnavailableMarker
	}
	if kind == KindPort {
		return strconv.FormatBool(m.Reachable)
	}
	return formatFloat(m.LatencyMS)
}

// ParseMeasurement reverses Measurement.Format.
func ParseMeasurement(kind TargetKind, raw string) (Measurement, error) {
	if raw == UnavailableMarker {
		return Unavailable(), nil
	}
	if kind == KindPort {
		ok, err := strconv.ParseBool(raw)
		if err != nil {
			return Measurement{}, fmt.Errorf("parse reachability %q: %w", raw, err)
		}
		return Reachability(ok), nil
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Measurement{}, fmt.Errorf("parse latency %q: %w", raw, err)
	}
	return Latency(ms), nil
}

// Bandwidth holds one speed test result. Either both values exist or the
// Sample carries no Bandwidth at all.
type Bandwidth struct {
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
}

// Sample stores the results of one cycle.
type Sample struct {
	Cycle          int                    `json:"cycle"`
	Timestamp      time.Time              `json:"timestamp"`
	Measurements   map[string]Measurement `json:"measurements"`
	Bandwidth      *Bandwidth             `json:"bandwidth,omitempty"`
	SpeedAttempted bool                   `json:"speed_attempted"`
}

// Measurement returns the reading for a target. Missing entries read as unavailable.
func (s Sample) Measurement(t Target) Measurement {
	return s.Measurements[t.ID()]
}

// DownloadText and UploadText render the bandwidth columns.
func (s Sample) DownloadText() string {
	if s.Bandwidth == nil {
		return UnavailableMarker
	}
	return formatFloat(s.Bandwidth.DownloadMbps)
}

func (s Sample) UploadText() string {
	if s.Bandwidth == nil {
		return UnavailableMarker
	}
	return formatFloat(s.Bandwidth.UploadMbps)
}

// ParseBandwidth reverses DownloadText/UploadText. A half-present pair is rejected.
func ParseBandwidth(download, upload string) (*Bandwidth, error) {
	if download == UnavailableMarker && upload == UnavailableMarker {
		return nil, nil
	}
	if download == UnavailableMarker || upload == UnavailableMarker {
		return nil, fmt.Errorf("partial bandwidth reading %q/%q", download, upload)
	}
	down, err := strconv.ParseFloat(download, 64)
	if err != nil {
		return nil, fmt.Errorf("parse download %q: %w", download, err)
	}
	up, err := strconv.ParseFloat(upload, 64)
	if err != nil {
		return nil, fmt.Errorf("parse upload %q: %w", upload, err)
	}
	return &Bandwidth{DownloadMbps: down, UploadMbps: up}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
