package forensics

import (
	"context"
	"image/color"
	"math"
	"strings"
	"testing"

	"go-document-forensics/internal/raster"
)

func newTestEngine(t *testing.T, cal Calibration) *Engine {
	t.Helper()
	engine, err := NewEngine(cal)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return engine
}

// uniformScores returns a score map with every feature at the given value,
// then applies the listed overrides.
func uniformScores(cal Calibration, base float64, overrides map[Feature]float64) map[Feature]FeatureScore {
	scores := make(map[Feature]FeatureScore)
	for _, f := range cal.Features() {
		v := base
		if o, ok := overrides[f]; ok {
			v = o
		}
		scores[f] = FeatureScore{Feature: f, Score: v}
	}
	return scores
}

func TestScoreAndClassify_CleanScoresAreGenuine(t *testing.T) {
	cal := GenericCalibration()
	engine := newTestEngine(t, cal)

	scores := uniformScores(cal, 0.90, nil)
	confidence, verdict, anomalies := engine.scoreAndClassify(scores, cal.Weights)

	if verdict != VerdictGenuine {
		t.Errorf("expected genuine verdict, got %s", verdict)
	}
	if math.Abs(confidence-0.90) > 1e-9 {
		t.Errorf("expected confidence 0.90, got %f", confidence)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected no anomalies, got %d", len(anomalies))
	}
}

func TestScoreAndClassify_CriticalGateForcesForgery(t *testing.T) {
	cal := GenericCalibration()
	engine := newTestEngine(t, cal)

	// Two corroborated critical failures must dominate four perfect scores.
	scores := uniformScores(cal, 1.0, map[Feature]float64{
		FeatureEdge:    0.30,
		FeatureTexture: 0.40,
	})
	confidence, verdict, anomalies := engine.scoreAndClassify(scores, cal.Weights)

	if verdict != VerdictSuspectedForgery {
		t.Errorf("expected forgery verdict, got %s", verdict)
	}
	raw := 0.20*0.30 + 0.20*0.40 + 0.60*1.0
	want := cal.ForgeryBase + cal.ForgeryFraction*raw
	if math.Abs(confidence-want) > 1e-9 {
		t.Errorf("expected depressed confidence %f, got %f", want, confidence)
	}
	if confidence > 0.30 {
		t.Errorf("depressed confidence %f exceeds 0.30 cap", confidence)
	}

	criticals := 0
	for _, a := range anomalies {
		if a.Severity == SeverityCritical {
			criticals++
		}
	}
	if criticals != 2 {
		t.Errorf("expected 2 critical anomalies, got %d", criticals)
	}
}

func TestScoreAndClassify_GateIsMonotonic(t *testing.T) {
	cal := GenericCalibration()
	engine := newTestEngine(t, cal)

	// Adding a third critical must not soften the verdict or raise confidence.
	two := uniformScores(cal, 1.0, map[Feature]float64{
		FeatureEdge:    0.30,
		FeatureTexture: 0.40,
	})
	three := uniformScores(cal, 1.0, map[Feature]float64{
		FeatureEdge:          0.30,
		FeatureTexture:       0.40,
		FeatureNoiseResidual: 0.20,
	})

	confTwo, verdictTwo, _ := engine.scoreAndClassify(two, cal.Weights)
	confThree, verdictThree, _ := engine.scoreAndClassify(three, cal.Weights)

	if verdictTwo != VerdictSuspectedForgery || verdictThree != VerdictSuspectedForgery {
		t.Fatalf("expected forgery verdicts, got %s and %s", verdictTwo, verdictThree)
	}
	if confThree > confTwo {
		t.Errorf("confidence rose from %f to %f as criticals increased", confTwo, confThree)
	}
}

func TestScoreAndClassify_SingleCriticalBlocksGenuine(t *testing.T) {
	cal := GenericCalibration()
	engine := newTestEngine(t, cal)

	// One critical does not trip the gate but still vetoes genuine even
	// though the weighted confidence clears the floor.
	scores := uniformScores(cal, 1.0, map[Feature]float64{FeatureEdge: 0.30})
	confidence, verdict, _ := engine.scoreAndClassify(scores, cal.Weights)

	if verdict != VerdictSuspectedForgery {
		t.Errorf("expected forgery verdict, got %s", verdict)
	}
	if confidence < cal.GenuineThreshold {
		t.Errorf("expected confidence above genuine floor (verdict vetoed by critical), got %f", confidence)
	}
}

func TestScoreAndClassify_WarningMultipliers(t *testing.T) {
	cal := GenericCalibration()
	engine := newTestEngine(t, cal)

	// Exactly one warning: mild penalty, still genuine.
	one := uniformScores(cal, 1.0, map[Feature]float64{FeatureEdge: 0.60})
	confidence, verdict, _ := engine.scoreAndClassify(one, cal.Weights)
	raw := 0.20*0.60 + 0.80*1.0
	if verdict != VerdictGenuine {
		t.Errorf("single warning: expected genuine verdict, got %s", verdict)
	}
	if math.Abs(confidence-raw*cal.SingleWarningFactor) > 1e-9 {
		t.Errorf("single warning: expected confidence %f, got %f", raw*cal.SingleWarningFactor, confidence)
	}

	// Three warnings: heavier penalty pushes below the genuine floor.
	many := uniformScores(cal, 1.0, map[Feature]float64{
		FeatureEdge:        0.60,
		FeatureTexture:     0.60,
		FeatureCompression: 0.55,
	})
	confidence, verdict, anomalies := engine.scoreAndClassify(many, cal.Weights)
	raw = 0.20*0.60 + 0.20*0.60 + 0.15*0.55 + 0.45*1.0
	if verdict != VerdictSuspectedForgery {
		t.Errorf("three warnings: expected forgery verdict, got %s", verdict)
	}
	if math.Abs(confidence-raw*cal.ManyWarningsFactor) > 1e-9 {
		t.Errorf("three warnings: expected confidence %f, got %f", raw*cal.ManyWarningsFactor, confidence)
	}
	for _, a := range anomalies {
		if a.Severity != SeverityWarning {
			t.Errorf("expected only warning anomalies, got %s for %s", a.Severity, a.Feature)
		}
	}
}

func TestDetectAnomalies_CriticalsFirstInFixedOrder(t *testing.T) {
	cal := GenericCalibration()
	engine := newTestEngine(t, cal)

	scores := uniformScores(cal, 1.0, map[Feature]float64{
		FeatureAlignment:     0.10, // critical, late in feature order
		FeatureEdge:          0.60, // warning, early in feature order
		FeatureNoiseResidual: 0.20, // critical
	})
	anomalies := engine.detectAnomalies(scores)

	if len(anomalies) != 3 {
		t.Fatalf("expected 3 anomalies, got %d", len(anomalies))
	}
	if anomalies[0].Feature != FeatureNoiseResidual || anomalies[0].Severity != SeverityCritical {
		t.Errorf("expected first anomaly critical noise residual, got %s/%s",
			anomalies[0].Severity, anomalies[0].Feature)
	}
	if anomalies[1].Feature != FeatureAlignment || anomalies[1].Severity != SeverityCritical {
		t.Errorf("expected second anomaly critical alignment, got %s/%s",
			anomalies[1].Severity, anomalies[1].Feature)
	}
	if anomalies[2].Feature != FeatureEdge || anomalies[2].Severity != SeverityWarning {
		t.Errorf("expected third anomaly warning edge, got %s/%s",
			anomalies[2].Severity, anomalies[2].Feature)
	}
	if !strings.HasPrefix(anomalies[0].Description, "critical:") {
		t.Errorf("unexpected critical description: %s", anomalies[0].Description)
	}
	if !strings.HasPrefix(anomalies[2].Description, "warning:") {
		t.Errorf("unexpected warning description: %s", anomalies[2].Description)
	}
}

func TestAnalyze_UniformGrayIsGenuine(t *testing.T) {
	engine := newTestEngine(t, GenericCalibration())
	img := solidRaster(t, 1024, 768, color.RGBA{128, 128, 128, 255})

	rec, err := engine.Analyze(context.Background(), img)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	if rec.Result != VerdictGenuine {
		t.Errorf("expected genuine verdict, got %s", rec.Result)
	}
	// Five neutral 1.0 features plus alignment at its 0.75 default:
	// 0.85 + 0.15*0.75 = 0.9625, rounded to 0.96.
	if rec.ConfidenceScore != 0.96 {
		t.Errorf("expected confidence 0.96, got %f", rec.ConfidenceScore)
	}
	if len(rec.Anomalies) != 0 {
		t.Errorf("expected no anomalies, got %v", rec.Anomalies)
	}
	if rec.EdgeConsistency != 1.0 || rec.TextureAnalysis != 1.0 || rec.CompressionArtifacts != 1.0 {
		t.Errorf("expected neutral pixel scores, got edge=%f texture=%f compression=%f",
			rec.EdgeConsistency, rec.TextureAnalysis, rec.CompressionArtifacts)
	}
	if rec.AlignmentScore != 0.75 {
		t.Errorf("expected alignment default 0.75, got %f", rec.AlignmentScore)
	}
	// Generic profile maps color correlation and noise residual onto the
	// historical ocr/font fields.
	if rec.OCRConsistency != 1.0 || rec.FontConsistency != 1.0 {
		t.Errorf("expected repurposed fields at 1.0, got ocr=%f font=%f",
			rec.OCRConsistency, rec.FontConsistency)
	}
	if rec.DocumentType != "" {
		t.Errorf("generic profile must not classify, got type %q", rec.DocumentType)
	}
	if !strings.Contains(rec.ExtractedText, "landscape") {
		t.Errorf("expected landscape placeholder text, got %q", rec.ExtractedText)
	}
	if rec.ID == "" || rec.AnalyzedAt == "" {
		t.Error("expected populated id and timestamp")
	}
}

func TestAnalyze_LocalizedNoiseIsForgery(t *testing.T) {
	engine := newTestEngine(t, GenericCalibration())
	img := noisyQuadrantRaster(t, 400, 400)

	rec, err := engine.Analyze(context.Background(), img)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	if rec.Result != VerdictSuspectedForgery {
		t.Errorf("expected forgery verdict, got %s", rec.Result)
	}
	if rec.ConfidenceScore > 0.30 {
		t.Errorf("expected depressed confidence <= 0.30, got %f", rec.ConfidenceScore)
	}

	criticals := 0
	for _, a := range rec.Anomalies {
		if strings.HasPrefix(a, "critical:") {
			criticals++
		}
	}
	if criticals < 2 {
		t.Errorf("expected at least 2 critical anomalies, got %d in %v", criticals, rec.Anomalies)
	}
}

func TestAnalyze_SpecializedClassifiesAndRemapsFields(t *testing.T) {
	engine := newTestEngine(t, SpecializedCalibration())
	// ID-1 card aspect ratio at the specialized resolution cap.
	img := solidRaster(t, 856, 540, color.RGBA{128, 128, 128, 255})

	rec, err := engine.Analyze(context.Background(), img)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	if rec.Profile != string(ProfileSpecialized) {
		t.Errorf("expected specialized profile tag, got %s", rec.Profile)
	}
	if rec.DocumentType != string(CategoryIDCard) {
		t.Errorf("expected id_card classification for aspect 1.585, got %q", rec.DocumentType)
	}
	// ocrConsistency carries the type confidence, fontConsistency the
	// security-mark score.
	if rec.OCRConsistency < 0.60 || rec.OCRConsistency > 0.95 {
		t.Errorf("type confidence %f outside expected range", rec.OCRConsistency)
	}
	securityScore := SecurityMarkDensity(img, engine.Calibration()).Score
	if math.Abs(rec.FontConsistency-round2(securityScore)) > 1e-9 {
		t.Errorf("expected fontConsistency %f to carry security score %f",
			rec.FontConsistency, round2(securityScore))
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	engine := newTestEngine(t, GenericCalibration())

	first, err := engine.Analyze(context.Background(), noisyQuadrantRaster(t, 300, 220))
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	second, err := engine.Analyze(context.Background(), noisyQuadrantRaster(t, 300, 220))
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	// Only the record id and timestamp may differ between runs.
	if first.Result != second.Result ||
		first.ConfidenceScore != second.ConfidenceScore ||
		first.EdgeConsistency != second.EdgeConsistency ||
		first.TextureAnalysis != second.TextureAnalysis ||
		first.CompressionArtifacts != second.CompressionArtifacts ||
		first.OCRConsistency != second.OCRConsistency ||
		first.FontConsistency != second.FontConsistency ||
		first.AlignmentScore != second.AlignmentScore ||
		first.ExtractedText != second.ExtractedText {
		t.Errorf("analysis not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if len(first.Anomalies) != len(second.Anomalies) {
		t.Fatalf("anomaly counts differ: %d vs %d", len(first.Anomalies), len(second.Anomalies))
	}
	for i := range first.Anomalies {
		if first.Anomalies[i] != second.Anomalies[i] {
			t.Errorf("anomaly %d differs: %q vs %q", i, first.Anomalies[i], second.Anomalies[i])
		}
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	engine := newTestEngine(t, GenericCalibration())
	img := solidRaster(t, 64, 64, color.RGBA{128, 128, 128, 255})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Analyze(ctx, img); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestAnalyze_ExtractorPanicReachesCaller(t *testing.T) {
	// An extractor panic must escape Analyze so the dispatching layer can
	// convert it into a pending record. errgroup v0.11+ repropagates
	// goroutine panics from Wait; this pins that behavior.
	engine := newTestEngine(t, GenericCalibration())
	engine.extractors[FeatureEdge] = func(img *raster.Image, cal Calibration) FeatureScore {
		panic("extractor failure")
	}
	img := solidRaster(t, 64, 64, color.RGBA{128, 128, 128, 255})

	defer func() {
		if recover() == nil {
			t.Error("expected the panic to reach the caller")
		}
	}()
	engine.Analyze(context.Background(), img)
}

func TestNewEngine_RejectsInvalidCalibration(t *testing.T) {
	cal := GenericCalibration()
	cal.Weights[FeatureEdge] = 0.50 // weights no longer sum to 1

	if _, err := NewEngine(cal); err == nil {
		t.Error("expected error for unbalanced weights")
	}
}
