package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notification not found")

type Type string

const (
	TypeAppointment  Type = "appointment"
	TypePrescription Type = "prescription"
	TypeSystem       Type = "system"
	TypePayment      Type = "payment"
	TypeReminder     Type = "reminder"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Notification struct {
	ID            uuid.UUID  `json:"id"`
	RecipientID   uuid.UUID  `json:"recipient_id"`
	Type          Type       `json:"type"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Timestamp     time.Time  `json:"timestamp"`
	Read          bool       `json:"read"`
	Priority      Priority   `json:"priority"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

// Store keeps one inbox per recipient. Implementations keep UnreadCount O(1).
type Store interface {
	Add(ctx context.Context, n Notification) error
	// List returns the inbox newest first.
	List(ctx context.Context, recipient uuid.UUID) ([]Notification, error)
	MarkRead(ctx context.Context, recipient, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipient uuid.UUID) (int, error)
	Delete(ctx context.Context, recipient, id uuid.UUID) error
	UnreadCount(ctx context.Context, recipient uuid.UUID) (int, error)
}
