package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetchDocument_Success(t *testing.T) {
	payload := []byte("document bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get("Accept"), "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}))
	defer server.Close()

	fetcher := NewHTTPDocumentFetcher()
	data, err := fetcher.FetchDocument(context.Background(), server.URL+"/scan.png")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestHTTPFetchDocument_ClientErrorIsTerminal(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewHTTPDocumentFetcher()
	_, err := fetcher.FetchDocument(context.Background(), server.URL+"/absent.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), hits.Load(), "4xx responses must not be retried")
}

func TestHTTPFetchDocument_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	fetcher := NewHTTPDocumentFetcher()
	data, err := fetcher.FetchDocument(context.Background(), server.URL+"/flaky.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("recovered"), data)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPFetchDocument_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	fetcher := NewHTTPDocumentFetcher()
	_, err := fetcher.FetchDocument(ctx, server.URL+"/slow.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPFetchDocument_InvalidSource(t *testing.T) {
	fetcher := NewHTTPDocumentFetcher()
	_, err := fetcher.FetchDocument(context.Background(), "://not-a-url")
	require.Error(t, err)
}
