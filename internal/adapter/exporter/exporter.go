package exporter

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
)

// Exporter writes every stored IOC to w in one format.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
	ContentType() string
	FileExtension() string
}

// Formats lists the accepted format names.
var Formats = []string{"csv", "json", "stix", "cef"}

// New returns the exporter for format (case-insensitive).
func New(format string, repo ports.IOCRepository) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return NewCSVExporter(repo), nil
	case "json":
		return NewJSONExporter(repo), nil
	case "stix":
		return NewSTIXExporter(repo), nil
	case "cef":
		return NewCEFExporter(repo), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}
