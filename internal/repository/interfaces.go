package repository

import (
	"context"

	"go-document-forensics/pkg/models"
)

// DocumentRepository defines data access for document artifacts.
type DocumentRepository interface {
	// FetchDocument retrieves the raw bytes of a document from a source
	FetchDocument(ctx context.Context, source string) ([]byte, error)

	// ValidateSource checks whether a document source is acceptable
	ValidateSource(source string) error
}

// AnalysisRepository retains analysis records for later retrieval by the
// review workflow. Durable persistence belongs to the external document
// store; this interface only backs the serving shell's lookup endpoint.
type AnalysisRepository interface {
	// SaveAnalysis stores an analysis record
	SaveAnalysis(ctx context.Context, record *models.DocumentAnalysis) error

	// GetAnalysis retrieves a record by its analysis id
	GetAnalysis(ctx context.Context, id string) (*models.DocumentAnalysis, error)

	// GetAnalysisHistory retrieves records for a correlation document id
	GetAnalysisHistory(ctx context.Context, documentID string) ([]*models.DocumentAnalysis, error)
}
