package flagstore

import (
	"context"
	"slices"
	"sync"
)

type MemFlagStore struct {
	mu   sync.Mutex
	Data map[string][]string
}

var _ FlagStore = (*MemFlagStore)(nil)

func NewMemFlagStore() *MemFlagStore {
	return &MemFlagStore{
		Data: make(map[string][]string),
	}
}

func (s *MemFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Data[key]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(v), nil
}

func (s *MemFlagStore) Has(ctx context.Context, key, flag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.Data[key], flag), nil
}

func (s *MemFlagStore) Add(ctx context.Context, key string, flags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.Data[key]
	for _, f := range flags {
		if !slices.Contains(v, f) {
			v = append(v, f)
		}
	}
	s.Data[key] = v
	return nil
}

func (s *MemFlagStore) TryAdd(ctx context.Context, key, flag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.Data[key], flag) {
		return false, nil
	}
	s.Data[key] = append(s.Data[key], flag)
	return true, nil
}

// does not error if flags not in set
func (s *MemFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Data[key]
	if !ok {
		return nil
	}
	out := []string{}
	for _, f := range v {
		if !slices.Contains(flags, f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		delete(s.Data, key)
		return nil
	}
	s.Data[key] = out
	return nil
}
