package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-booking/internal/metrics"
)

// Service is the recipient-facing inbox. It never touches appointments.
type Service struct {
	store   Store
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(store Store, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		metrics: m,
		logger:  logger.With().Str("service", "notification").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Notify stores n, filling in ID and Timestamp when unset. New notifications are unread.
func (s *Service) Notify(ctx context.Context, n Notification) (*Notification, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now()
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	n.Read = false

	if err := s.store.Add(ctx, n); err != nil {
		return nil, err
	}
	s.metrics.ObserveNotification(string(n.Type))
	s.logger.Debug().
		Str("recipient_id", n.RecipientID.String()).
		Str("type", string(n.Type)).
		Str("priority", string(n.Priority)).
		Msg("notification queued")
	return &n, nil
}

func (s *Service) List(ctx context.Context, recipient uuid.UUID) ([]Notification, error) {
	return s.store.List(ctx, recipient)
}

func (s *Service) MarkAsRead(ctx context.Context, recipient, id uuid.UUID) error {
	return s.store.MarkRead(ctx, recipient, id)
}

func (s *Service) MarkAllAsRead(ctx context.Context, recipient uuid.UUID) (int, error) {
	return s.store.MarkAllRead(ctx, recipient)
}

// Delete removes a notification for good. Deleting an unknown id returns ErrNotFound.
func (s *Service) Delete(ctx context.Context, recipient, id uuid.UUID) error {
	return s.store.Delete(ctx, recipient, id)
}

func (s *Service) UnreadCount(ctx context.Context, recipient uuid.UUID) (int, error) {
	return s.store.UnreadCount(ctx, recipient)
}
