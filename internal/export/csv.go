package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"netmonitor/internal/models"
	"netmonitor/internal/storage"
)

const (
	timestampColumn = "Timestamp"
	downloadColumn  = "Download_Speed"
	uploadColumn    = "Upload_Speed"
)

// TimestampLayout keeps sub-second precision so a report parses back to the
// same timestamps.
const TimestampLayout = time.RFC3339Nano

// CSVExporter rewrites the tabular report in full after every cycle.
type CSVExporter struct {
	path string
}

func NewCSVExporter(path string) *CSVExporter {
	return &CSVExporter{path: path}
}

func (e *CSVExporter) Name() string { return "csv" }

func (e *CSVExporter) Export(_ context.Context, snapshot storage.Snapshot) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, snapshot); err != nil {
		return err
	}
	return storage.WriteFileAtomic(e.path, buf.Bytes())
}

// WriteCSV renders one row per sample: timestamp, one column per target in
// configured order, download and upload Mbps.
func WriteCSV(w io.Writer, snapshot storage.Snapshot) error {
	writer := csv.NewWriter(w)

	header := make([]string, 0, len(snapshot.Targets)+3)
	header = append(header, timestampColumn)
	for _, target := range snapshot.Targets {
		header = append(header, target.Column())
	}
	header = append(header, downloadColumn, uploadColumn)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for _, sample := range snapshot.Samples {
		row = row[:0]
		row = append(row, sample.Timestamp.UTC().Format(TimestampLayout))
		for _, target := range snapshot.Targets {
			row = append(row, sample.Measurement(target).Format(target.Kind))
		}
		row = append(row, sample.DownloadText(), sample.UploadText())
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadCSVFile parses a report written by CSVExporter.
func ReadCSVFile(path string) (storage.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reverses WriteCSV. Cycle numbers are restored from row order and
// the run id is not part of the report.
func ParseCSV(r io.Reader) (storage.Snapshot, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return storage.Snapshot{}, errors.New("empty report")
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) < 3 || header[0] != timestampColumn ||
		header[len(header)-2] != downloadColumn || header[len(header)-1] != uploadColumn {
		return storage.Snapshot{}, fmt.Errorf("unexpected report header %v", header)
	}

	targetColumns := header[1 : len(header)-2]
	snapshot := storage.Snapshot{Targets: make([]models.Target, 0, len(targetColumns))}
	for _, column := range targetColumns {
		target, err := models.ParseColumn(column)
		if err != nil {
			return storage.Snapshot{}, err
		}
		snapshot.Targets = append(snapshot.Targets, target)
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return storage.Snapshot{}, fmt.Errorf("read csv line %d: %w", line, err)
		}
		sample, err := parseRow(record, snapshot.Targets)
		if err != nil {
			return storage.Snapshot{}, fmt.Errorf("line %d: %w", line, err)
		}
		sample.Cycle = line - 1
		snapshot.Samples = append(snapshot.Samples, sample)
	}
	return snapshot, nil
}

func parseRow(record []string, targets []models.Target) (models.Sample, error) {
	ts, err := time.Parse(TimestampLayout, record[0])
	if err != nil {
		return models.Sample{}, fmt.Errorf("parse timestamp: %w", err)
	}
	sample := models.Sample{
		Timestamp:    ts,
		Measurements: make(map[string]models.Measurement, len(targets)),
	}
	for i, target := range targets {
		m, err := models.ParseMeasurement(target.Kind, record[i+1])
		if err != nil {
			return models.Sample{}, fmt.Errorf("%s: %w", target.Column(), err)
		}
		sample.Measurements[target.ID()] = m
	}
	n := len(record)
	sample.Bandwidth, err = models.ParseBandwidth(record[n-2], record[n-1])
	if err != nil {
		return models.Sample{}, err
	}
	sample.SpeedAttempted = sample.Bandwidth != nil
	return sample, nil
}
