package provider

import (
	"context"
	"os"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/metrics"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
)

// FileTLDProvider reads a TLD list from disk, for air-gapped deployments
// and tests. The file uses the same format as the IANA list.
type FileTLDProvider struct {
	path string
}

func NewFileTLDProvider(path string) *FileTLDProvider {
	return &FileTLDProvider{path: path}
}

func (p *FileTLDProvider) Name() string {
	return p.path
}

func (p *FileTLDProvider) Load(ctx context.Context) (*domain.TLDRegistry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Source: p.path, Err: err}
	}

	f, err := os.Open(p.path)
	if err != nil {
		metrics.RecordTLDFetchError("file")
		return nil, &domain.FetchError{Source: p.path, Err: err}
	}
	defer f.Close()

	reg, err := parseRegistry(f)
	if err != nil {
		metrics.RecordTLDFetchError("parse")
		return nil, &domain.FetchError{Source: p.path, Err: err}
	}

	return reg, nil
}
