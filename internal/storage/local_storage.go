package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalDocumentFetcher reads documents from a directory on disk. Used by
// batch intake flows that drop scans into a shared volume.
type LocalDocumentFetcher struct {
	root string
}

// NewLocalDocumentFetcher creates a fetcher rooted at the given directory.
func NewLocalDocumentFetcher(root string) DocumentFetcher {
	return &LocalDocumentFetcher{root: root}
}

func (l *LocalDocumentFetcher) FetchDocument(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Confine reads to the configured root
	path := filepath.Join(l.root, filepath.Clean("/"+source))
	rootAbs, err := filepath.Abs(l.root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve document path: %w", err)
	}
	if !strings.HasPrefix(pathAbs, rootAbs+string(filepath.Separator)) && pathAbs != rootAbs {
		return nil, fmt.Errorf("document path escapes storage root")
	}

	info, err := os.Stat(pathAbs)
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.Size() > maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d byte limit", maxDocumentBytes)
	}

	data, err := os.ReadFile(pathAbs)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}
