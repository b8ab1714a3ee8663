package exporter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
)

// CEFExporter exports IOCs in Common Event Format for SIEM ingestion
type CEFExporter struct {
	repo ports.IOCRepository
}

func NewCEFExporter(repo ports.IOCRepository) *CEFExporter {
	return &CEFExporter{repo: repo}
}

func (e *CEFExporter) ContentType() string   { return "text/plain" }
func (e *CEFExporter) FileExtension() string { return "cef" }

// Export writes one CEF line per IOC.
// Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(ctx context.Context, w io.Writer) error {
	iocs, err := e.repo.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch IOCs: %w", err)
	}

	bw := bufio.NewWriter(w)
	for _, ioc := range iocs {
		bw.WriteString(formatCEF(ioc))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatCEF(ioc domain.IOC) string {
	vendor := "Watchtower"
	product := "ChatMonitor"
	version := "1.0"
	signatureID := string(ioc.Type)
	name := fmt.Sprintf("%s IOC Detected", strings.ToUpper(string(ioc.Type)))

	extensions := []string{
		fmt.Sprintf("%s=%s", valueKey(ioc.Type), escapeField(ioc.Value)),
		fmt.Sprintf("externalId=%d", ioc.ID),
		"cs1Label=Chat",
		fmt.Sprintf("cs1=%s", escapeField(ioc.Source.ChatLabel())),
	}
	if ioc.Source.MessageID != nil {
		extensions = append(extensions, "cn1Label=MessageID", fmt.Sprintf("cn1=%d", *ioc.Source.MessageID))
	}
	if ioc.Source.SenderUsername != nil {
		extensions = append(extensions, fmt.Sprintf("suser=%s", escapeField(*ioc.Source.SenderUsername)))
	}
	extensions = append(extensions, fmt.Sprintf("rt=%d", ioc.DetectedAt.UnixMilli()))

	return fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
		vendor, product, version, signatureID, name, severity(ioc.Type), strings.Join(extensions, " "))
}

func valueKey(t domain.IOCType) string {
	switch t {
	case domain.IPAddress:
		return "src"
	case domain.URL:
		return "request"
	default:
		return "dhost"
	}
}

// URLs point at a concrete payload, so they rank above bare hosts.
func severity(t domain.IOCType) int {
	if t == domain.URL {
		return 6
	}
	return 4
}

func escapeField(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
