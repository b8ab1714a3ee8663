package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/exporter"
	"github.com/hive-corporation/watchtower-chat/internal/adapter/repository"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
)

func seedStore(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cli.db")

	repo, err := repository.NewSQLiteRepository(ctx, path, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer repo.Close()

	title := "IR room"
	for i, c := range []struct {
		value string
		typ   domain.IOCType
	}{
		{"10.0.0.1", domain.IPAddress},
		{"evil.com", domain.Domain},
		{"http://evil.com/x.sh", domain.URL},
		{"good.org", domain.Domain},
	} {
		msgID := int64(i + 1)
		_, err := repo.Insert(ctx, domain.Candidate{
			Value:  c.value,
			Type:   c.typ,
			Source: domain.Source{ChatTitle: &title, MessageID: &msgID},
		})
		require.NoError(t, err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestStats(t *testing.T) {
	db := seedStore(t)

	out, err := runCLI(t, "", "--database-url", db, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "IOC STATISTICS")
	assert.Regexp(t, `Total IOCs:\s+4`, out)
	assert.Regexp(t, `domain\s+2`, out)

	out, err = runCLI(t, "", "--database-url", db, "--json", "stats")
	require.NoError(t, err)
	var stats domain.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.PerType[domain.URL])
}

func TestDatabaseURLFromEnv(t *testing.T) {
	db := seedStore(t)
	t.Setenv("DATABASE_URL", db)

	out, err := runCLI(t, "", "--json", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 4`)
}

func TestList(t *testing.T) {
	db := seedStore(t)

	out, err := runCLI(t, "", "--database-url", db, "list", "--type", "domain")
	require.NoError(t, err)
	assert.Contains(t, out, "good.org")
	assert.Contains(t, out, "evil.com")
	assert.Contains(t, out, "IR room")
	assert.NotContains(t, out, "10.0.0.1")

	out, err = runCLI(t, "", "--database-url", db, "--json", "list", "-n", "1")
	require.NoError(t, err)
	var iocs []domain.IOC
	require.NoError(t, json.Unmarshal([]byte(out), &iocs))
	require.Len(t, iocs, 1)
	assert.Equal(t, "good.org", iocs[0].Value)

	_, err = runCLI(t, "", "--database-url", db, "list", "--type", "hash")
	assert.ErrorIs(t, err, domain.ErrUnknownIOCType)
}

func TestSearch(t *testing.T) {
	db := seedStore(t)

	out, err := runCLI(t, "", "--database-url", db, "--json", "search", "evil")
	require.NoError(t, err)
	var iocs []domain.IOC
	require.NoError(t, json.Unmarshal([]byte(out), &iocs))
	assert.Len(t, iocs, 2)

	out, err = runCLI(t, "", "--database-url", db, "search", "EVIL")
	require.NoError(t, err)
	assert.Contains(t, out, "No IOCs found")

	_, err = runCLI(t, "", "--database-url", db, "search")
	assert.Error(t, err)
}

func TestUnique(t *testing.T) {
	db := seedStore(t)

	out, err := runCLI(t, "", "--database-url", db, "unique", "--type", "domain")
	require.NoError(t, err)
	assert.Equal(t, "evil.com\ngood.org\n", out)
}

func TestExport(t *testing.T) {
	db := seedStore(t)
	output := filepath.Join(t.TempDir(), "iocs_export.csv")

	out, err := runCLI(t, "", "--database-url", db, "export", "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported IOCs to")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, exporter.CSVHeader, rows[0])
	assert.Equal(t, "good.org", rows[1][1])

	_, err = runCLI(t, "", "--database-url", db, "export", "--format", "xml", "--output", output)
	assert.Error(t, err)
}

func TestWriteFileAtomic_FailedWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "iocs_export.csv")

	err := writeFileAtomic(output, func(w io.Writer) error {
		_, _ = io.WriteString(w, "ID,IOC Value\n1,")
		return errors.New("store went away")
	})
	require.Error(t, err)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteFileAtomic_KeepsPreviousExportOnFailure(t *testing.T) {
	output := filepath.Join(t.TempDir(), "iocs_export.csv")
	require.NoError(t, os.WriteFile(output, []byte("previous"), 0o644))

	err := writeFileAtomic(output, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("boom")
	})
	require.Error(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	require.NoError(t, writeFileAtomic(output, func(w io.Writer) error {
		_, err := io.WriteString(w, "fresh")
		return err
	}))
	data, err = os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestScan(t *testing.T) {
	tlds := filepath.Join(t.TempDir(), "tlds.txt")
	require.NoError(t, os.WriteFile(tlds, []byte("COM\nNET\n"), 0o644))

	out, err := runCLI(t, "beacon to 8.8.8.8 via evil.com and bad.zzzz\nhttp://evil.com/p", "scan", "--tld-file", tlds)
	require.NoError(t, err)
	assert.Contains(t, out, "[IP] 8.8.8.8")
	assert.Contains(t, out, "[DOMAIN] evil.com")
	assert.Contains(t, out, "[URL] http://evil.com/p")
	assert.NotContains(t, out, "bad.zzzz")
	assert.Contains(t, out, "3 IOC(s) found.")

	_, err = runCLI(t, "nothing here", "scan", "--tld-file", tlds, "--fail")
	assert.NoError(t, err)

	_, err = runCLI(t, "1.1.1.1", "scan", "--tld-file", tlds, "--fail")
	assert.ErrorIs(t, err, ErrIOCsFound)
}
