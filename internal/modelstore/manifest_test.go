package modelstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func createTestManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := OpenManifest(filepath.Join(t.TempDir(), "manifest.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestOpenManifest(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "manifest.db")

	m, err := OpenManifest(dbPath, testLogger())
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")

	// Reopening applies no new migrations.
	m, err = OpenManifest(dbPath, testLogger())
	require.NoError(t, err)
	assert.Equal(t, dbPath, m.Path())
	require.NoError(t, m.Close())
}

func TestManifest_RecordAndLookup(t *testing.T) {
	m := createTestManifest(t)
	ctx := context.Background()

	a := &Artifact{
		SourceRepo: "hugging-quants/Llama-3.2-1B-Instruct-Q4_K_M-GGUF",
		FileName:   "llama-3.2-1b-instruct-q4_k_m.gguf",
		LocalPath:  "/models/llama.gguf",
		SizeBytes:  807694464,
		SHA256:     "abc123",
	}
	require.NoError(t, m.Record(ctx, a))
	assert.NotZero(t, a.ID, "ID should be assigned")
	assert.False(t, a.DownloadedAt.IsZero(), "DownloadedAt should be set")

	got, err := m.Lookup(ctx, a.SourceRepo, a.FileName)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.LocalPath, got.LocalPath)
	assert.Equal(t, a.SizeBytes, got.SizeBytes)
	assert.Equal(t, a.SHA256, got.SHA256)
	assert.WithinDuration(t, a.DownloadedAt, got.DownloadedAt, time.Second)
}

func TestManifest_RecordReplaces(t *testing.T) {
	m := createTestManifest(t)
	ctx := context.Background()

	first := &Artifact{SourceRepo: "r", FileName: "f", LocalPath: "/a", SizeBytes: 1}
	require.NoError(t, m.Record(ctx, first))

	second := &Artifact{SourceRepo: "r", FileName: "f", LocalPath: "/b", SizeBytes: 2, SHA256: "ff"}
	require.NoError(t, m.Record(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	all, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "/b", all[0].LocalPath)
	assert.Equal(t, int64(2), all[0].SizeBytes)
}

func TestManifest_LookupMissing(t *testing.T) {
	m := createTestManifest(t)

	got, err := m.Lookup(context.Background(), "none", "none.gguf")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestManifest_ListAndDelete(t *testing.T) {
	m := createTestManifest(t)
	ctx := context.Background()

	older := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, m.Record(ctx, &Artifact{SourceRepo: "r", FileName: "old.gguf", LocalPath: "/old", DownloadedAt: older}))
	require.NoError(t, m.Record(ctx, &Artifact{SourceRepo: "r", FileName: "new.gguf", LocalPath: "/new"}))

	all, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new.gguf", all[0].FileName)

	require.NoError(t, m.Delete(ctx, "r", "new.gguf"))
	all, err = m.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "old.gguf", all[0].FileName)
}
