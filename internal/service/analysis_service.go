package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "go-document-forensics/internal/errors"
	"go-document-forensics/internal/forensics"
	"go-document-forensics/internal/logger"
	"go-document-forensics/internal/observer"
	"go-document-forensics/internal/raster"
	"go-document-forensics/internal/repository"
	"go-document-forensics/pkg/models"
)

// AnalysisService orchestrates one authenticity analysis per submitted
// document: fetch, decode, dispatch to the bounded worker pool, and convert
// every failure mode into either a typed error or a well-formed pending
// record.
type AnalysisService interface {
	// AnalyzeFromSource fetches document bytes from a source URL and analyzes them
	AnalyzeFromSource(ctx context.Context, req models.AnalyzeRequest) (*models.DocumentAnalysis, error)

	// AnalyzeBytes analyzes raw document bytes supplied by the caller
	AnalyzeBytes(ctx context.Context, documentID string, data []byte, profile string) (*models.DocumentAnalysis, error)

	// GetAnalysis retrieves a retained record by analysis id
	GetAnalysis(ctx context.Context, id string) (*models.DocumentAnalysis, error)

	// GetAnalysisHistory retrieves retained records for a document id
	GetAnalysisHistory(ctx context.Context, documentID string) ([]*models.DocumentAnalysis, error)

	// ValidateSource checks a document source before fetching
	ValidateSource(source string) error
}

// AnalysisEngine is the scoring pipeline the service dispatches to.
// *forensics.Engine is the production implementation.
type AnalysisEngine interface {
	Analyze(ctx context.Context, img *raster.Image) (*models.DocumentAnalysis, error)
	Calibration() forensics.Calibration
	MaxDimension() int
}

type analysisService struct {
	documents repository.DocumentRepository
	results   repository.AnalysisRepository
	engines   map[forensics.Profile]AnalysisEngine
	pool      *forensics.WorkerPool
	publisher observer.Subject

	fetchTimeout    time.Duration
	analysisTimeout time.Duration
}

// NewAnalysisService wires the orchestration shell together.
func NewAnalysisService(
	documents repository.DocumentRepository,
	results repository.AnalysisRepository,
	engines map[forensics.Profile]AnalysisEngine,
	pool *forensics.WorkerPool,
	publisher observer.Subject,
	fetchTimeout, analysisTimeout time.Duration,
) AnalysisService {
	return &analysisService{
		documents:       documents,
		results:         results,
		engines:         engines,
		pool:            pool,
		publisher:       publisher,
		fetchTimeout:    fetchTimeout,
		analysisTimeout: analysisTimeout,
	}
}

// AnalyzeFromSource fetches and analyzes a document from a source URL.
func (s *analysisService) AnalyzeFromSource(ctx context.Context, req models.AnalyzeRequest) (*models.DocumentAnalysis, error) {
	if err := s.ValidateSource(req.URL); err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	data, err := s.documents.FetchDocument(fetchCtx, req.URL)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:    observer.DocumentFetchFailed,
			Timestamp:    time.Now().UTC(),
			DocumentID:   req.DocumentID,
			Profile:      req.Profile,
			ErrorMessage: err.Error(),
		})
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("document fetch timeout", err)
		}
		return nil, apperrors.NewNetworkError("failed to fetch document", err)
	}

	s.publish(ctx, observer.AnalysisEvent{
		EventType:  observer.DocumentFetched,
		Timestamp:  time.Now().UTC(),
		DocumentID: req.DocumentID,
		Profile:    req.Profile,
		Success:    true,
	})

	return s.AnalyzeBytes(ctx, req.DocumentID, data, req.Profile)
}

// AnalyzeBytes decodes the document and runs the engine on a pool worker.
// Decode failures surface as typed errors with no partial record; an
// unexpected extractor failure is converted into a pending record so the
// caller always receives a well-formed result from a running pipeline.
func (s *analysisService) AnalyzeBytes(ctx context.Context, documentID string, data []byte, profile string) (*models.DocumentAnalysis, error) {
	engine, ok := s.engines[normalizeProfile(profile)]
	if !ok {
		return nil, apperrors.NewValidationError("unknown analysis profile: "+profile, nil)
	}

	img, err := raster.Decode(data, engine.MaxDimension())
	if err != nil {
		switch {
		case errors.Is(err, raster.ErrEmptyImage):
			return nil, apperrors.NewDecodeError("document image has zero extent", err)
		case errors.Is(err, raster.ErrDecode):
			return nil, apperrors.NewDecodeError("document bytes are not a decodable image", err)
		default:
			return nil, apperrors.NewDecodeError("failed to decode document", err)
		}
	}

	start := time.Now()
	s.publish(ctx, observer.AnalysisEvent{
		EventType:  observer.AnalysisStarted,
		Timestamp:  start.UTC(),
		DocumentID: documentID,
		Profile:    string(engine.Calibration().Profile),
	})

	analysisCtx, cancel := context.WithTimeout(ctx, s.analysisTimeout)
	defer cancel()

	record, err := s.dispatch(analysisCtx, engine, img, documentID)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			Timestamp:      time.Now().UTC(),
			DocumentID:     documentID,
			Profile:        string(engine.Calibration().Profile),
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	record.DocumentID = documentID
	if saveErr := s.results.SaveAnalysis(context.WithoutCancel(ctx), record); saveErr != nil {
		logger.WithError(saveErr).WithFields(logrus.Fields{
			"analysis_id": record.ID,
		}).Warn("Failed to retain analysis record")
	}

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Timestamp:      time.Now().UTC(),
		DocumentID:     documentID,
		Profile:        record.Profile,
		Verdict:        record.Result,
		ProcessingTime: time.Since(start),
		Success:        record.Result != forensics.VerdictPending,
	})
	return record, nil
}

type analysisOutcome struct {
	record *models.DocumentAnalysis
	err    error
}

// dispatch hands the CPU-bound work to the bounded pool and waits for
// either the result or the caller's deadline. Cancelling this document's
// context never affects other submissions.
func (s *analysisService) dispatch(ctx context.Context, engine AnalysisEngine, img *raster.Image, documentID string) (*models.DocumentAnalysis, error) {
	out := make(chan analysisOutcome, 1)
	submitted := s.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{
					"document_id": documentID,
					"panic":       r,
				}).Error("Analysis pipeline panicked")
				out <- analysisOutcome{record: s.pendingRecord(engine)}
			}
		}()

		record, err := engine.Analyze(ctx, img)
		out <- analysisOutcome{record: record, err: err}
	})
	if !submitted {
		return nil, apperrors.NewInternalError("analysis pool is shut down", nil)
	}

	select {
	case result := <-out:
		if result.err != nil {
			if errors.Is(result.err, context.DeadlineExceeded) {
				return nil, apperrors.NewTimeoutError("analysis timed out", result.err)
			}
			return nil, apperrors.NewProcessingError("analysis cancelled", result.err)
		}
		return result.record, nil
	case <-ctx.Done():
		// The worker still drains into the buffered channel; the record is
		// simply discarded once the caller has gone.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("analysis timed out", ctx.Err())
		}
		return nil, apperrors.NewProcessingError("analysis cancelled", ctx.Err())
	}
}

// pendingRecord is the well-formed fallback for an unexpected pipeline
// failure: verdict pending, zero confidence, one explanatory anomaly.
func (s *analysisService) pendingRecord(engine AnalysisEngine) *models.DocumentAnalysis {
	return &models.DocumentAnalysis{
		ID:         uuid.NewString(),
		Profile:    string(engine.Calibration().Profile),
		Result:     forensics.VerdictPending,
		Anomalies:  []string{"analysis failed"},
		AnalyzedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// GetAnalysis retrieves a retained record by id.
func (s *analysisService) GetAnalysis(ctx context.Context, id string) (*models.DocumentAnalysis, error) {
	record, err := s.results.GetAnalysis(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			return nil, apperrors.NewNotFoundError("analysis not found", err)
		}
		return nil, apperrors.NewInternalError("failed to load analysis", err)
	}
	return record, nil
}

// GetAnalysisHistory retrieves retained records for a document id.
func (s *analysisService) GetAnalysisHistory(ctx context.Context, documentID string) ([]*models.DocumentAnalysis, error) {
	return s.results.GetAnalysisHistory(ctx, documentID)
}

// ValidateSource checks the document source.
func (s *analysisService) ValidateSource(source string) error {
	return s.documents.ValidateSource(source)
}

func (s *analysisService) publish(ctx context.Context, event observer.AnalysisEvent) {
	if s.publisher != nil {
		s.publisher.NotifyObservers(context.WithoutCancel(ctx), event)
	}
}

func normalizeProfile(profile string) forensics.Profile {
	if profile == "" {
		return forensics.ProfileGeneric
	}
	return forensics.Profile(profile)
}
