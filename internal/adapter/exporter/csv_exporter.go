package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
)

// CSVHeader is the column order of the CSV export.
var CSVHeader = []string{
	"ID", "IOC Value", "IOC Type", "Chat ID", "Chat Title", "Message ID",
	"Message Content", "Sender ID", "Sender Username", "Detected At",
}

// CSVExporter writes one row per stored IOC, newest first. Missing
// provenance fields are written as empty cells.
type CSVExporter struct {
	repo ports.IOCRepository
}

func NewCSVExporter(repo ports.IOCRepository) *CSVExporter {
	return &CSVExporter{repo: repo}
}

func (e *CSVExporter) ContentType() string   { return "text/csv" }
func (e *CSVExporter) FileExtension() string { return "csv" }

func (e *CSVExporter) Export(ctx context.Context, w io.Writer) error {
	iocs, err := e.repo.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch IOCs: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, ioc := range iocs {
		if err := cw.Write(csvRow(ioc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(ioc domain.IOC) []string {
	return []string{
		strconv.FormatInt(ioc.ID, 10),
		ioc.Value,
		string(ioc.Type),
		optInt(ioc.Source.ChatID),
		optString(ioc.Source.ChatTitle),
		optInt(ioc.Source.MessageID),
		optString(ioc.Source.MessageText),
		optInt(ioc.Source.SenderID),
		optString(ioc.Source.SenderUsername),
		ioc.DetectedAt.UTC().Format(time.RFC3339Nano),
	}
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
