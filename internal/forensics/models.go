package forensics

// Feature identifies one authenticity statistic computed from the pixel
// buffer. Feature scores are independent: an extractor may only read the
// shared raster image, never another extractor's output.
type Feature string

const (
	FeatureEdge             Feature = "edge_consistency"
	FeatureTexture          Feature = "texture_uniformity"
	FeatureCompression      Feature = "compression_artifacts"
	FeatureColorCorrelation Feature = "color_correlation"
	FeatureNoiseResidual    Feature = "noise_residual"
	FeatureAlignment        Feature = "text_alignment"
	FeatureSecurityMarks    Feature = "security_marks"
)

// featureOrder fixes iteration order everywhere scores are combined or
// reported, so identical input bytes always produce identical output.
var featureOrder = []Feature{
	FeatureEdge,
	FeatureTexture,
	FeatureCompression,
	FeatureColorCorrelation,
	FeatureNoiseResidual,
	FeatureAlignment,
	FeatureSecurityMarks,
}

// FeatureScore is the result of one extractor: a normalized score in [0,1]
// where higher means more consistent with a genuine document, plus the raw
// observations the score was derived from.
type FeatureScore struct {
	Feature Feature
	Score   float64
	Raw     map[string]float64
}

// Severity classifies a detected feature deficiency.
type Severity string

const (
	// SeverityCritical deficiencies participate in the stage-1 verdict gate.
	SeverityCritical Severity = "critical"
	// SeverityWarning deficiencies only discount confidence in stage 2.
	SeverityWarning Severity = "warning"
)

// Anomaly records one feature falling below its calibrated threshold.
// Anomalies are always recomputed from scores, never stored independently.
type Anomaly struct {
	Severity    Severity
	Feature     Feature
	Description string
}

// Category is a coarse document class guessed by the type classifier.
type Category string

const (
	CategoryIDCard     Category = "id_card"
	CategoryPassport   Category = "passport"
	CategoryA4Document Category = "a4_document"
	CategoryGeneric    Category = "generic"
)

// DocumentTypeGuess is purely advisory: it selects a weight vector for the
// ensemble and never gates the final verdict.
type DocumentTypeGuess struct {
	Category   Category
	Confidence float64
	Cues       []string
}

// Verdict values are part of the stable output schema.
const (
	VerdictGenuine          = "genuine"
	VerdictSuspectedForgery = "suspected_forgery"
	VerdictPending          = "pending"
)
