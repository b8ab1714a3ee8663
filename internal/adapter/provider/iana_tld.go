package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/metrics"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
)

// DefaultIANATLDURL is the published list of every delegated top-level domain.
const DefaultIANATLDURL = "https://data.iana.org/TLD/tlds-alpha-by-domain.txt"

const defaultFetchTimeout = 10 * time.Second

// IANATLDProvider downloads the TLD list over HTTP.
type IANATLDProvider struct {
	client *ResilientClient
	url    string
	logger *zap.SugaredLogger
}

func NewIANATLDProvider(client *ResilientClient, url string, logger *zap.SugaredLogger) *IANATLDProvider {
	if url == "" {
		url = DefaultIANATLDURL
	}
	if client == nil {
		client = NewResilientClient(defaultFetchTimeout, DefaultResilientClientConfig(), logger)
	}
	return &IANATLDProvider{
		client: client,
		url:    url,
		logger: logger,
	}
}

func (p *IANATLDProvider) Name() string {
	return p.url
}

// Load fetches and parses the list. Any failure comes back as a
// *domain.FetchError naming the URL.
func (p *IANATLDProvider) Load(ctx context.Context) (*domain.TLDRegistry, error) {
	p.logger.Infow("fetching TLD list", "url", p.url)

	resp, err := p.client.Get(ctx, p.url)
	if err != nil {
		return nil, &domain.FetchError{Source: p.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordTLDFetchError("http_error")
		return nil, &domain.FetchError{Source: p.url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	reg, err := parseRegistry(resp.Body)
	if err != nil {
		metrics.RecordTLDFetchError("parse")
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &domain.FetchError{Source: p.url, Err: err}
	}

	return reg, nil
}

// parseRegistry turns a raw list into a registry, recording the size metric.
func parseRegistry(r io.Reader) (*domain.TLDRegistry, error) {
	entries, err := domain.ParseTLDList(r)
	if err != nil {
		return nil, err
	}
	reg, err := domain.NewTLDRegistry(entries)
	if err != nil {
		return nil, err
	}
	metrics.SetTLDRegistrySize(reg.Len())
	return reg, nil
}
