package repository

import (
	"context"
	"sync"

	"go-document-forensics/pkg/models"
)

// defaultRetention bounds the in-memory record count; the oldest records
// are evicted first once the cap is reached.
const defaultRetention = 1024

// MemoryAnalysisRepository is a bounded in-memory AnalysisRepository. It
// backs GET /analyses/:id for recently completed work; long-term storage
// is the document-intake collaborator's job.
type MemoryAnalysisRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.DocumentAnalysis
	byDoc   map[string][]*models.DocumentAnalysis
	order   []string
	maxSize int
}

// NewMemoryAnalysisRepository creates an empty repository with the default
// retention cap.
func NewMemoryAnalysisRepository() *MemoryAnalysisRepository {
	return &MemoryAnalysisRepository{
		byID:    make(map[string]*models.DocumentAnalysis),
		byDoc:   make(map[string][]*models.DocumentAnalysis),
		maxSize: defaultRetention,
	}
}

// SaveAnalysis stores a record, evicting the oldest entry when full.
func (m *MemoryAnalysisRepository) SaveAnalysis(ctx context.Context, record *models.DocumentAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[record.ID]; !exists {
		m.order = append(m.order, record.ID)
	}
	m.byID[record.ID] = record
	if record.DocumentID != "" {
		m.byDoc[record.DocumentID] = append(m.byDoc[record.DocumentID], record)
	}

	for len(m.order) > m.maxSize {
		oldest := m.order[0]
		m.order = m.order[1:]
		if old, ok := m.byID[oldest]; ok {
			delete(m.byID, oldest)
			if old.DocumentID != "" {
				history := m.byDoc[old.DocumentID]
				for i, r := range history {
					if r.ID == oldest {
						m.byDoc[old.DocumentID] = append(history[:i], history[i+1:]...)
						break
					}
				}
				if len(m.byDoc[old.DocumentID]) == 0 {
					delete(m.byDoc, old.DocumentID)
				}
			}
		}
	}
	return nil
}

// GetAnalysis retrieves a record by analysis id.
func (m *MemoryAnalysisRepository) GetAnalysis(ctx context.Context, id string) (*models.DocumentAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, ErrAnalysisNotFound
	}
	return record, nil
}

// GetAnalysisHistory retrieves all retained records for a document id,
// oldest first.
func (m *MemoryAnalysisRepository) GetAnalysisHistory(ctx context.Context, documentID string) ([]*models.DocumentAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.byDoc[documentID]
	out := make([]*models.DocumentAnalysis, len(history))
	copy(out, history)
	return out, nil
}
