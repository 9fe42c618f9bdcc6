package export

import (
	"context"
	"encoding/json"
	"fmt"

	"netmonitor/internal/storage"
)

// JSONExporter writes the whole snapshot, run id included.
type JSONExporter struct {
	path string
}

func NewJSONExporter(path string) *JSONExporter {
	return &JSONExporter{path: path}
}

func (e *JSONExporter) Name() string { return "json" }

func (e *JSONExporter) Export(_ context.Context, snapshot storage.Snapshot) error {
	bytes, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return storage.WriteFileAtomic(e.path, bytes)
}
