package countstore

import (
	"context"
	"sync"
	"time"
)

type MemCountStore struct {
	mu     sync.Mutex
	Counts map[string]int
	// defaults to time.Now
	Clock func() time.Time
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		Counts: make(map[string]int),
		Clock:  time.Now,
	}
}

func (s *MemCountStore) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Counts[periodBucket(name, val, period, s.now())], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	return s.IncrementBy(ctx, name, val, 1)
}

func (s *MemCountStore) IncrementBy(ctx context.Context, name, val string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, p := range allPeriods {
		s.Counts[periodBucket(name, val, p, now)] += n
	}
	return nil
}

func (s *MemCountStore) Reset(ctx context.Context, name, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, p := range allPeriods {
		delete(s.Counts, periodBucket(name, val, p, now))
	}
	return nil
}
