// Package memory keeps verification challenges in process memory. It is the
// default backend when no Redis URL is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

type Store struct {
	mu    sync.Mutex
	items map[string]domain.OTPChallenge
}

func NewStore() *Store {
	return &Store{items: make(map[string]domain.OTPChallenge)}
}

func (s *Store) Save(_ context.Context, ch domain.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[domain.NormalizeSubject(ch.Subject)] = ch
	return nil
}

func (s *Store) Get(_ context.Context, subject string) (*domain.OTPChallenge, error) {
	key := domain.NormalizeSubject(subject)
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.items[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get challenge", fmt.Errorf("no challenge for %s", key))
	}
	return &ch, nil
}

func (s *Store) Delete(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, domain.NormalizeSubject(subject))
	return nil
}
