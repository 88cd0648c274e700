package observer

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when an analysis begins
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when an analysis finishes successfully
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when an analysis fails
	AnalysisFailed EventType = "analysis_failed"
	// DocumentFetched when document bytes are retrieved
	DocumentFetched EventType = "document_fetched"
	// DocumentFetchFailed when a document fetch fails
	DocumentFetchFailed EventType = "document_fetch_failed"
)

// AnalysisEvent represents one lifecycle event of a document analysis.
type AnalysisEvent struct {
	EventType      EventType     `json:"event_type"`
	Timestamp      time.Time     `json:"timestamp"`
	DocumentID     string        `json:"document_id"`
	Profile        string        `json:"profile"`
	Verdict        string        `json:"verdict,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
	Success        bool          `json:"success"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"document_id":     event.DocumentID,
		"profile":         event.Profile,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.Verdict != "" {
		fields["verdict"] = event.Verdict
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	switch event.EventType {
	case AnalysisStarted:
		o.logger.WithFields(fields).Info("Document analysis started")
	case AnalysisCompleted:
		o.logger.WithFields(fields).Info("Document analysis completed")
	case AnalysisFailed:
		o.logger.WithFields(fields).Error("Document analysis failed")
	case DocumentFetched:
		o.logger.WithFields(fields).Debug("Document fetched successfully")
	case DocumentFetchFailed:
		o.logger.WithFields(fields).Error("Document fetch failed")
	default:
		o.logger.WithFields(fields).Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver exports analysis counters and latency to Prometheus.
type MetricsObserver struct {
	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	fetchFailures    prometheus.Counter
}

// NewMetricsObserver creates a metrics observer registered on the given
// registerer.
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	m := &MetricsObserver{
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_analyses_total",
			Help: "Completed document analyses by profile and verdict.",
		}, []string{"profile", "verdict"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "document_analysis_duration_seconds",
			Help:    "Wall-clock duration of document analyses.",
			Buckets: prometheus.DefBuckets,
		}, []string{"profile"}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "document_fetch_failures_total",
			Help: "Document fetch attempts that failed.",
		}),
	}
	reg.MustRegister(m.analysesTotal, m.analysisDuration, m.fetchFailures)
	return m
}

// OnEvent handles analysis events by updating Prometheus series.
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	switch event.EventType {
	case AnalysisCompleted:
		o.analysesTotal.WithLabelValues(event.Profile, event.Verdict).Inc()
		o.analysisDuration.WithLabelValues(event.Profile).Observe(event.ProcessingTime.Seconds())
	case AnalysisFailed:
		o.analysesTotal.WithLabelValues(event.Profile, "failed").Inc()
	case DocumentFetchFailed:
		o.fetchFailures.Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
