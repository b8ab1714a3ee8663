package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
)

const ianaSample = `# Version 2026101500, Last Updated Thu Oct 15 07:07:01 2026 UTC
AAA
COM
NET
ORG
XN--P1AI
`

func newTestIANAProvider(t *testing.T, handler http.HandlerFunc) *IANATLDProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := zap.NewNop().Sugar()
	client := NewResilientClient(5*time.Second, fastConfig(false), logger)
	return NewIANATLDProvider(client, server.URL, logger)
}

func TestIANATLDProvider_Load(t *testing.T) {
	p := newTestIANAProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ianaSample))
	})

	reg, err := p.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, reg.Len())
	assert.True(t, reg.IsValid("com"))
	assert.True(t, reg.IsValid("xn--p1ai"))
	assert.False(t, reg.IsValid("version"))
	assert.Equal(t, "aaa", reg.Sorted()[0])
}

func TestIANATLDProvider_DefaultURL(t *testing.T) {
	p := NewIANATLDProvider(nil, "", zap.NewNop().Sugar())
	assert.Equal(t, DefaultIANATLDURL, p.Name())
	assert.NotNil(t, p.client)
}

func TestIANATLDProvider_ServerErrorIsFetchError(t *testing.T) {
	p := newTestIANAProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	reg, err := p.Load(context.Background())
	assert.Nil(t, reg)

	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, p.Name(), fetchErr.Source)
}

func TestIANATLDProvider_MalformedBody(t *testing.T) {
	p := newTestIANAProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>maintenance</body></html>\n"))
	})

	_, err := p.Load(context.Background())
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Contains(t, err.Error(), "malformed")
}

func TestIANATLDProvider_EmptyBody(t *testing.T) {
	p := newTestIANAProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# only a header\n"))
	})

	_, err := p.Load(context.Background())
	assert.True(t, errors.Is(err, domain.ErrEmptyTLDList))
}

func TestFileTLDProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlds.txt")
	require.NoError(t, os.WriteFile(path, []byte(ianaSample), 0o644))

	p := NewFileTLDProvider(path)
	reg, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, reg.Len())
	assert.Equal(t, path, p.Name())
}

func TestFileTLDProvider_MissingFile(t *testing.T) {
	p := NewFileTLDProvider(filepath.Join(t.TempDir(), "nope.txt"))

	_, err := p.Load(context.Background())
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
