package availability

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store persists one Availability per doctor.
type Store interface {
	Get(ctx context.Context, doctorID uuid.UUID) (*Availability, error)
	Save(ctx context.Context, a *Availability) error
}

type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Availability
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]*Availability)}
}

func (s *MemoryStore) Get(_ context.Context, doctorID uuid.UUID) (*Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[doctorID]
	if !ok {
		return nil, ErrNotFound
	}
	return a.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, a *Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[a.DoctorID] = a.clone()
	return nil
}
