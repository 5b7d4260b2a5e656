package notification

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type inbox struct {
	items  map[uuid.UUID]*Notification
	order  []uuid.UUID
	unread int
}

type MemoryStore struct {
	mu      sync.RWMutex
	inboxes map[uuid.UUID]*inbox
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{inboxes: make(map[uuid.UUID]*inbox)}
}

func (s *MemoryStore) Add(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	box, ok := s.inboxes[n.RecipientID]
	if !ok {
		box = &inbox{items: make(map[uuid.UUID]*Notification)}
		s.inboxes[n.RecipientID] = box
	}
	if prev, exists := box.items[n.ID]; exists && !prev.Read {
		box.unread--
	} else if !exists {
		box.order = append(box.order, n.ID)
	}
	box.items[n.ID] = &n
	if !n.Read {
		box.unread++
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, recipient uuid.UUID) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	box, ok := s.inboxes[recipient]
	if !ok {
		return []Notification{}, nil
	}
	out := make([]Notification, 0, len(box.order))
	for i := len(box.order) - 1; i >= 0; i-- {
		out = append(out, *box.items[box.order[i]])
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, recipient, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, box := s.lookup(recipient, id)
	if n == nil {
		return ErrNotFound
	}
	if !n.Read {
		n.Read = true
		box.unread--
	}
	return nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, recipient uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	box, ok := s.inboxes[recipient]
	if !ok {
		return 0, nil
	}
	changed := box.unread
	for _, n := range box.items {
		n.Read = true
	}
	box.unread = 0
	return changed, nil
}

func (s *MemoryStore) Delete(_ context.Context, recipient, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, box := s.lookup(recipient, id)
	if n == nil {
		return ErrNotFound
	}
	if !n.Read {
		box.unread--
	}
	delete(box.items, id)
	for i, v := range box.order {
		if v == id {
			box.order = append(box.order[:i], box.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, recipient uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if box, ok := s.inboxes[recipient]; ok {
		return box.unread, nil
	}
	return 0, nil
}

func (s *MemoryStore) lookup(recipient, id uuid.UUID) (*Notification, *inbox) {
	box, ok := s.inboxes[recipient]
	if !ok {
		return nil, nil
	}
	return box.items[id], box
}
