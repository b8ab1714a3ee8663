package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
)

// JSONExporter writes all IOCs as one indented JSON array.
type JSONExporter struct {
	repo ports.IOCRepository
}

func NewJSONExporter(repo ports.IOCRepository) *JSONExporter {
	return &JSONExporter{repo: repo}
}

func (e *JSONExporter) ContentType() string   { return "application/json" }
func (e *JSONExporter) FileExtension() string { return "json" }

func (e *JSONExporter) Export(ctx context.Context, w io.Writer) error {
	iocs, err := e.repo.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch IOCs: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(iocs)
}
