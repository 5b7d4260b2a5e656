package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all storage interactions needed by the service.
type Repository interface {
	// Directory
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	HasDoctor(ctx context.Context, id uuid.UUID) (bool, error)
	UpsertPatient(ctx context.Context, p Patient) error
	UpsertDoctor(ctx context.Context, d Doctor) error

	// Ledger reads
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)
	// ActiveSlotTimes returns the slot labels held by pending or confirmed appointments.
	ActiveSlotTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)

	// InsertAppointment is the booking commit point. It fails with ErrSlotConflict when another
	// active appointment already holds (doctor, date, time).
	InsertAppointment(ctx context.Context, a *Appointment) error
	// UpdateStatus moves id from -> to only if the stored status is still from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Appointment, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string, at time.Time) (*Appointment, error)
	SetPaid(ctx context.Context, id uuid.UUID, paid bool, at time.Time) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
	ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]EventLog, error)
}
