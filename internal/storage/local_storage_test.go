package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFetchDocument_ReadsWithinRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "intake"), 0o755))
	payload := []byte("scanned document")
	require.NoError(t, os.WriteFile(filepath.Join(root, "intake", "scan.png"), payload, 0o644))

	fetcher := NewLocalDocumentFetcher(root)
	data, err := fetcher.FetchDocument(context.Background(), "intake/scan.png")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestLocalFetchDocument_ConfinesTraversal(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "storage")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("secret"), 0o644))

	fetcher := NewLocalDocumentFetcher(root)
	// The leading-slash clean pins the path inside the root, so the
	// traversal resolves to a missing file rather than the parent's.
	data, err := fetcher.FetchDocument(context.Background(), "../secret.txt")
	require.Error(t, err)
	assert.Nil(t, data)
}

func TestLocalFetchDocument_MissingFile(t *testing.T) {
	fetcher := NewLocalDocumentFetcher(t.TempDir())
	_, err := fetcher.FetchDocument(context.Background(), "absent.png")
	require.Error(t, err)
}

func TestLocalFetchDocument_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := NewLocalDocumentFetcher(t.TempDir())
	_, err := fetcher.FetchDocument(ctx, "scan.png")
	assert.ErrorIs(t, err, context.Canceled)
}
