package models

// DocumentAnalysis is the stable authenticity record emitted once per
// analysis. Field names and value semantics are part of the compatibility
// surface consumed by the document-intake and admin-review workflows.
//
// The score field names are historical. In the generic profile
// ocrConsistency carries the color-channel correlation score and
// fontConsistency the noise-residual uniformity score. In the specialized
// profile ocrConsistency carries the document-type confidence and
// fontConsistency the security-mark score. Downstream consumers rely on
// this mapping staying put.
type DocumentAnalysis struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId,omitempty"`
	Profile    string `json:"profile"`

	Result          string  `json:"result"` // genuine | suspected_forgery | pending
	ConfidenceScore float64 `json:"confidenceScore"`

	EdgeConsistency      float64 `json:"edgeConsistency"`
	TextureAnalysis      float64 `json:"textureAnalysis"`
	CompressionArtifacts float64 `json:"compressionArtifacts"`
	OCRConsistency       float64 `json:"ocrConsistency"`
	FontConsistency      float64 `json:"fontConsistency"`
	AlignmentScore       float64 `json:"alignmentScore"`

	// ExtractedText is a descriptive placeholder, not real OCR output.
	ExtractedText string `json:"extractedText"`

	// Anomalies is ordered with critical entries first.
	Anomalies []string `json:"anomalies"`

	// AnalyzedAt is an RFC-3339 completion timestamp, the only
	// clock-dependent field in the record.
	AnalyzedAt string `json:"analyzedAt"`

	// DocumentType carries the classifier guess in the specialized
	// profile; empty for the generic profile.
	DocumentType string   `json:"documentType,omitempty"`
	TypeCues     []string `json:"typeCues,omitempty"`
}
