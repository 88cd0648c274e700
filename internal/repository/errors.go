package repository

import "errors"

var (
	// ErrInvalidSource indicates an invalid document source
	ErrInvalidSource = errors.New("invalid document source")

	// ErrDocumentNotFound indicates the document was not found
	ErrDocumentNotFound = errors.New("document not found")

	// ErrAnalysisNotFound indicates the analysis record was not found
	ErrAnalysisNotFound = errors.New("analysis record not found")
)
