package app

import (
	"sync"

	"github.com/google/uuid"

	"buyside-ai/models"
)

// resultStore keeps the most recent analyses in memory so their charts and
// reports can be fetched after the run. The oldest entry is evicted first.
type resultStore struct {
	mu      sync.RWMutex
	limit   int
	order   []uuid.UUID
	results map[uuid.UUID]*models.AnalysisResult
}

func newResultStore(limit int) *resultStore {
	if limit <= 0 {
		limit = 1
	}
	return &resultStore{
		limit:   limit,
		results: make(map[uuid.UUID]*models.AnalysisResult, limit),
	}
}

func (s *resultStore) put(result *models.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[result.ID]; !ok {
		s.order = append(s.order, result.ID)
	}
	s.results[result.ID] = result

	for len(s.order) > s.limit {
		delete(s.results, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *resultStore) get(id uuid.UUID) (*models.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[id]
	return result, ok
}

func (s *resultStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
