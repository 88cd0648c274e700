package repository

import (
	"context"

	"go-document-forensics/internal/storage"
	"go-document-forensics/pkg/validation"
)

// FetcherDocumentRepository implements DocumentRepository over a storage
// fetcher with source validation in front.
type FetcherDocumentRepository struct {
	fetcher   storage.DocumentFetcher
	validator validation.SourceValidator
}

// NewDocumentRepository creates a repository backed by the given fetcher.
func NewDocumentRepository(fetcher storage.DocumentFetcher, validator validation.SourceValidator) DocumentRepository {
	return &FetcherDocumentRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

// FetchDocument retrieves the raw bytes of a document.
func (r *FetcherDocumentRepository) FetchDocument(ctx context.Context, source string) ([]byte, error) {
	return r.fetcher.FetchDocument(ctx, source)
}

// ValidateSource checks whether the source is acceptable before any fetch.
func (r *FetcherDocumentRepository) ValidateSource(source string) error {
	return r.validator.ValidateSource(source)
}
