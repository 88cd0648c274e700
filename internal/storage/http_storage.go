package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DocumentFetcher retrieves the raw bytes of a document artifact from a
// source location. The analysis engine only ever sees bytes; where they
// came from is the fetcher's concern.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, source string) ([]byte, error)
}

// maxDocumentBytes caps a fetched document so a misbehaving source cannot
// exhaust memory before the decoder gets a say.
const maxDocumentBytes = 32 * 1024 * 1024

// HTTPDocumentFetcher implements DocumentFetcher over HTTP(S) with bounded
// retries for transient failures.
type HTTPDocumentFetcher struct {
	client *http.Client
}

// NewHTTPDocumentFetcher creates an HTTP document fetcher.
func NewHTTPDocumentFetcher() DocumentFetcher {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DisableCompression:     false,
		MaxResponseHeaderBytes: 4096,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}

	return &HTTPDocumentFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

func (h *HTTPDocumentFetcher) FetchDocument(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid document source: %w", err)
	}

	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "Go-Document-Forensics/1.0")
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	// Retry transient failures; 4xx responses are terminal.
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read document body: %w", err)
			}
			if int64(len(data)) > maxDocumentBytes {
				return nil, fmt.Errorf("document exceeds %d byte limit", maxDocumentBytes)
			}
			return data, nil
		}

		resp.Body.Close()
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("client error: status code %d", resp.StatusCode)
		}
		lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}

	return nil, fmt.Errorf("failed to fetch document after 3 attempts: %w", lastErr)
}
