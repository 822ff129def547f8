package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pyq-server/models"
)

// MemoryStore keeps papers in process. Used for development, tests and as
// the default driver.
type MemoryStore struct {
	mu     sync.RWMutex
	papers map[string]*models.Paper
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{papers: make(map[string]*models.Paper)}
}

func (s *MemoryStore) List(_ context.Context, f models.PaperFilter) ([]models.PaperSummary, error) {
	s.mu.RLock()
	all := make([]models.PaperSummary, 0, len(s.papers))
	for _, p := range s.papers {
		all = append(all, p.Summary())
	}
	s.mu.RUnlock()
	return models.FilterSummaries(all, f), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.papers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) RecordView(_ context.Context, id string) (*models.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Views++
	return p.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, p *models.Paper) (*models.Paper, error) {
	c := p.Clone()
	prepare(c, uuid.NewString)
	s.mu.Lock()
	s.papers[c.ID] = c
	s.mu.Unlock()
	return c.Clone(), nil
}

func (s *MemoryStore) Replace(_ context.Context, p *models.Paper) (*models.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.papers[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if old.Revision != p.Revision {
		return nil, ErrConflict
	}
	c := p.Clone()
	prepare(c, uuid.NewString)
	c.Revision++
	c.Views, c.Attempts, c.AverageScore = old.Views, old.Attempts, old.AverageScore
	c.CreatedAt = old.CreatedAt
	s.papers[c.ID] = c
	return c.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.papers[id]; !ok {
		return ErrNotFound
	}
	delete(s.papers, id)
	return nil
}

func (s *MemoryStore) RecordAttempt(_ context.Context, id string, percentage float64) (models.PaperStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return models.PaperStats{}, ErrNotFound
	}
	p.AverageScore = nextAverage(p.AverageScore, p.Attempts, percentage)
	p.Attempts++
	return p.Stats(), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
