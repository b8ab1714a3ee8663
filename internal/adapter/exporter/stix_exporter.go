package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
)

// indicatorNamespace seeds deterministic indicator ids, so re-exporting the
// same record yields the same STIX id.
var indicatorNamespace = uuid.MustParse("6f0b6a0e-3c55-4b8a-9a43-8e1f9d1c7a21")

// STIXExporter exports IOCs in STIX 2.1 format for SIEM ingestion
type STIXExporter struct {
	repo ports.IOCRepository
	now  func() time.Time
}

func NewSTIXExporter(repo ports.IOCRepository) *STIXExporter {
	return &STIXExporter{repo: repo, now: time.Now}
}

func (e *STIXExporter) ContentType() string   { return "application/stix+json" }
func (e *STIXExporter) FileExtension() string { return "json" }

// Export writes one bundle holding an indicator per stored IOC.
func (e *STIXExporter) Export(ctx context.Context, w io.Writer) error {
	iocs, err := e.repo.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch IOCs: %w", err)
	}

	bundle := STIXBundle{
		Type:    "bundle",
		ID:      fmt.Sprintf("bundle--%s", uuid.New().String()),
		Objects: make([]STIXObject, 0, len(iocs)),
	}

	now := e.now().UTC()
	for _, ioc := range iocs {
		bundle.Objects = append(bundle.Objects, e.convertToSTIX(ioc, now))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("failed to marshal STIX bundle: %w", err)
	}
	return nil
}

func (e *STIXExporter) convertToSTIX(ioc domain.IOC, now time.Time) STIXObject {
	seen := ioc.DetectedAt.UTC().Format(time.RFC3339Nano)

	obj := STIXObject{
		Type:           "indicator",
		SpecVersion:    "2.1",
		ID:             indicatorID(ioc),
		Created:        seen,
		Modified:       now.Format(time.RFC3339Nano),
		Name:           fmt.Sprintf("%s Indicator", strings.ToUpper(string(ioc.Type))),
		Pattern:        buildPattern(ioc),
		PatternType:    "stix",
		ValidFrom:      seen,
		IndicatorTypes: []string{"unknown"},
		Labels:         []string{"chat-sourced"},
	}

	ref := ExternalReference{SourceName: "watchtower-chat", Description: "chat " + ioc.Source.ChatLabel()}
	if ioc.Source.MessageID != nil {
		ref.ExternalID = fmt.Sprintf("message:%d", *ioc.Source.MessageID)
	}
	obj.ExternalReferences = []ExternalReference{ref}

	return obj
}

func indicatorID(ioc domain.IOC) string {
	key := fmt.Sprintf("%d|%s|%s", ioc.ID, ioc.Type, ioc.Value)
	return fmt.Sprintf("indicator--%s", uuid.NewSHA1(indicatorNamespace, []byte(key)).String())
}

func buildPattern(ioc domain.IOC) string {
	value := escapePatternValue(ioc.Value)
	switch ioc.Type {
	case domain.IPAddress:
		return fmt.Sprintf("[ipv4-addr:value = '%s']", value)
	case domain.Domain:
		return fmt.Sprintf("[domain-name:value = '%s']", value)
	case domain.URL:
		return fmt.Sprintf("[url:value = '%s']", value)
	default:
		return fmt.Sprintf("[x-custom:value = '%s']", value)
	}
}

// Pattern string literals escape backslash and single quote.
func escapePatternValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// STIX 2.1 data structures

type STIXBundle struct {
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Objects []STIXObject `json:"objects"`
}

type STIXObject struct {
	Type               string              `json:"type"`
	SpecVersion        string              `json:"spec_version"`
	ID                 string              `json:"id"`
	Created            string              `json:"created"`
	Modified           string              `json:"modified"`
	Name               string              `json:"name"`
	Pattern            string              `json:"pattern"`
	PatternType        string              `json:"pattern_type"`
	ValidFrom          string              `json:"valid_from"`
	IndicatorTypes     []string            `json:"indicator_types"`
	Labels             []string            `json:"labels,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
}

type ExternalReference struct {
	SourceName  string `json:"source_name"`
	Description string `json:"description,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
}
