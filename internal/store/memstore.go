package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Storage kept entirely in process memory. Values are
// copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	workshops   map[string]*Workshop
	submissions map[string]*Submission
	config      map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workshops:   make(map[string]*Workshop),
		submissions: make(map[string]*Submission),
		config:      make(map[string]string),
	}
}

func (m *MemoryStore) SaveWorkshop(ctx context.Context, w *Workshop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workshops[w.ID] = cloneWorkshop(w)
	return nil
}

func (m *MemoryStore) GetWorkshop(ctx context.Context, id string) (*Workshop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workshops[id]
	if !ok {
		return nil, fmt.Errorf("workshop %s: %w", id, ErrNotFound)
	}
	return cloneWorkshop(w), nil
}

func (m *MemoryStore) ListWorkshops(ctx context.Context) ([]*Workshop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Workshop, 0, len(m.workshops))
	for _, w := range m.workshops {
		out = append(out, cloneWorkshop(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *MemoryStore) SaveSubmission(ctx context.Context, s *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	m.submissions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) ListSubmissions(ctx context.Context, workshopID string) ([]*Submission, error) {
	return m.filter(func(s *Submission) bool { return s.WorkshopID == workshopID }), nil
}

func (m *MemoryStore) FindExpiredSessions(ctx context.Context, olderThan time.Time) ([]*Submission, error) {
	return m.filter(func(s *Submission) bool {
		return s.SessionID != "" && s.SessionLastUpdated != nil && s.SessionLastUpdated.Before(olderThan)
	}), nil
}

func (m *MemoryStore) filter(keep func(*Submission) bool) []*Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Submission
	for _, s := range m.submissions {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) SetConfig(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

func (m *MemoryStore) GetConfig(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config[key], nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneWorkshop(w *Workshop) *Workshop {
	c := *w
	c.Questions = make([]Question, len(w.Questions))
	for i, q := range w.Questions {
		c.Questions[i] = q
		c.Questions[i].Options = append([]string(nil), q.Options...)
	}
	c.Sections = make([]Section, len(w.Sections))
	for i, s := range w.Sections {
		c.Sections[i] = s
		c.Sections[i].Questions = append([]string(nil), s.Questions...)
	}
	return &c
}
