package container

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"go-document-forensics/internal/config"
	"go-document-forensics/internal/factory"
	"go-document-forensics/internal/forensics"
	"go-document-forensics/internal/logger"
	"go-document-forensics/internal/observer"
	"go-document-forensics/internal/repository"
	"go-document-forensics/internal/service"
	"go-document-forensics/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	pool            *forensics.WorkerPool
	analysisService service.AnalysisService
	handler         http.Handler
}

// NewContainer builds the dependency graph from configuration.
func NewContainer(cfg *config.Config) (*Container, error) {
	fetcher, sourceValidator, err := factory.BuildFetcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build document fetcher: %w", err)
	}

	built, err := factory.BuildEngines(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis engines: %w", err)
	}
	engines := make(map[forensics.Profile]service.AnalysisEngine, len(built))
	for profile, engine := range built {
		engines[profile] = engine
	}

	pool := forensics.NewWorkerPool(cfg.AnalysisWorkers)
	pool.Start()

	registry := prometheus.NewRegistry()
	registry.MustRegister(newPoolCollector(pool))

	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(observer.NewMetricsObserver(registry))

	documents := repository.NewDocumentRepository(fetcher, sourceValidator)
	results := repository.NewMemoryAnalysisRepository()

	analysisService := service.NewAnalysisService(
		documents, results, engines, pool, publisher,
		cfg.DocumentFetchTimeout, cfg.AnalysisTimeout,
	)
	handler := transport.NewHandler(analysisService, cfg, registry)

	return &Container{
		config:          cfg,
		pool:            pool,
		analysisService: analysisService,
		handler:         handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close shuts down the worker pool after draining outstanding analyses.
func (c *Container) Close() {
	c.pool.Wait()
	c.pool.Close()
}

// poolCollector exposes worker pool counters as Prometheus gauges.
type poolCollector struct {
	pool          *forensics.WorkerPool
	totalJobs     *prometheus.Desc
	completedJobs *prometheus.Desc
	activeWorkers *prometheus.Desc
}

func newPoolCollector(pool *forensics.WorkerPool) *poolCollector {
	return &poolCollector{
		pool: pool,
		totalJobs: prometheus.NewDesc("analysis_pool_jobs_total",
			"Analyses submitted to the worker pool.", nil, nil),
		completedJobs: prometheus.NewDesc("analysis_pool_jobs_completed",
			"Analyses completed by the worker pool.", nil, nil),
		activeWorkers: prometheus.NewDesc("analysis_pool_active_workers",
			"Workers currently running an analysis.", nil, nil),
	}
}

func (pc *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.totalJobs
	ch <- pc.completedJobs
	ch <- pc.activeWorkers
}

func (pc *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := pc.pool.GetStats()
	ch <- prometheus.MustNewConstMetric(pc.totalJobs, prometheus.CounterValue, float64(stats.TotalJobs))
	ch <- prometheus.MustNewConstMetric(pc.completedJobs, prometheus.CounterValue, float64(stats.CompletedJobs))
	ch <- prometheus.MustNewConstMetric(pc.activeWorkers, prometheus.GaugeValue, float64(stats.ActiveWorkers))
}
