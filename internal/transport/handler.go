package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"go-document-forensics/internal/config"
	apperrors "go-document-forensics/internal/errors"
	"go-document-forensics/internal/logger"
	"go-document-forensics/internal/service"
	"go-document-forensics/pkg/models"
)

// NewHandler configures the HTTP surface: analysis submission by source
// URL or direct upload, record lookup, health and metrics.
func NewHandler(analysisService service.AnalysisService, cfg *config.Config, gatherer prometheus.Gatherer) http.Handler {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestID(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)

	r.GET("/health", healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.POST("/analyze", analyzeBySource(analysisService, cfg))
	r.POST("/analyze/upload", analyzeUpload(analysisService, cfg))
	r.GET("/analyses/:id", getAnalysis(analysisService))
	r.GET("/documents/:documentId/analyses", getHistory(analysisService))

	return r
}

// analyzeBySource handles JSON submissions referencing a document by URL.
func analyzeBySource(s service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		if req.DocumentID == "" {
			req.DocumentID = uuid.NewString()
		}

		logger.WithFields(logrus.Fields{
			"request_id":  c.GetString(requestIDKey),
			"document_id": req.DocumentID,
			"profile":     req.Profile,
		}).Info("Processing document analysis request")

		record, err := s.AnalyzeFromSource(ctx, req)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id":         c.GetString(requestIDKey),
			"document_id":        req.DocumentID,
			"analysis_id":        record.ID,
			"verdict":            record.Result,
			"confidence":         record.ConfidenceScore,
			"anomalies":          len(record.Anomalies),
			"processing_time_ms": time.Since(start).Milliseconds(),
		}).Info("Document analysis completed")

		c.JSON(http.StatusOK, record)
	}
}

// analyzeUpload handles direct multipart uploads of document bytes.
func analyzeUpload(s service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		fileHeader, err := c.FormFile("document")
		if err != nil {
			respondError(c, http.StatusBadRequest, "missing document file", err)
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "unreadable document file", err)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, cfg.MaxRequestBodySize))
		if err != nil {
			respondError(c, http.StatusBadRequest, "failed to read document file", err)
			return
		}

		documentID := c.PostForm("document_id")
		if documentID == "" {
			documentID = uuid.NewString()
		}
		profile := c.PostForm("profile")

		record, err := s.AnalyzeBytes(ctx, documentID, data, profile)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func getAnalysis(s service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := s.GetAnalysis(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func getHistory(s service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := s.GetAnalysisHistory(c.Request.Context(), c.Param("documentId"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"analyses": history})
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

const requestIDKey = "request_id"

// requestID attaches a correlation id to every request, honoring one
// supplied by the caller.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// respondServiceError maps typed application errors onto HTTP status codes.
func respondServiceError(c *gin.Context, err error) {
	code := apperrors.GetStatusCode(err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		code = http.StatusRequestTimeout
	}
	respondError(c, code, "analysis request failed", err)
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
