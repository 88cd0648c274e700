package models

// AnalyzeRequest asks the service to fetch a document from a source and
// analyze it. The source format depends on the configured storage backend
// (http(s) URL, path under the local storage root, or blob reference), so
// format checks are left to the backend's validator. DocumentID is an
// opaque caller-supplied correlation identifier; the engine is indifferent
// to where the bytes came from.
type AnalyzeRequest struct {
	URL        string `json:"url" binding:"required"`
	DocumentID string `json:"document_id,omitempty"`
	Profile    string `json:"profile,omitempty"` // generic (default) | specialized
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
