package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	AppointmentBooked       Type = "appointment.booked"
	AppointmentConfirmed    Type = "appointment.confirmed"
	AppointmentCompleted    Type = "appointment.completed"
	AppointmentCancelled    Type = "appointment.cancelled"
	AppointmentNotesUpdated Type = "appointment.notes_updated"
	PrescriptionIssued      Type = "prescription.issued"
	PaymentProcessed        Type = "payment.processed"
)

// Event is a committed fact about the ledger.
type Event struct {
	ID            uuid.UUID         `json:"id"`
	Type          Type              `json:"type"`
	AppointmentID uuid.UUID         `json:"appointment_id"`
	PatientID     uuid.UUID         `json:"patient_id"`
	DoctorID      uuid.UUID         `json:"doctor_id"`
	ActorID       uuid.UUID         `json:"actor_id"`
	ActorRole     string            `json:"actor_role"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Data          map[string]string `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Handler func(ctx context.Context, e Event) error

// Multi fans one publish out to several publishers and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
