package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Progress
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{jobs: make(map[string]*Progress), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Start(ctx context.Context, kind string, total int) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, p := range s.jobs {
		if p.FinishedAt != nil && now.Sub(*p.FinishedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}

	p := &Progress{
		ID:        uuid.NewString(),
		Kind:      kind,
		State:     StateRunning,
		Total:     total,
		StartedAt: now.UTC(),
	}
	s.jobs[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Advance(ctx context.Context, id string, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found := s.jobs[id]
	if !found {
		return ErrNotFound
	}
	p.Completed++
	if ok {
		p.Succeeded++
	} else {
		p.Failed++
	}
	return nil
}

func (s *MemoryStore) Finish(ctx context.Context, id string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found := s.jobs[id]
	if !found {
		return ErrNotFound
	}
	now := s.now().UTC()
	p.FinishedAt = &now
	p.State = StateCompleted
	if err != nil {
		p.State = StateFailed
		p.Error = err.Error()
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found := s.jobs[id]
	if !found {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}
