package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active statuses hold their slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return s, nil
	}
	return "", &ValidationError{Field: "status", Reason: "must be one of pending, confirmed, completed, cancelled"}
}

type Type string

const (
	TypeVideo Type = "video"
	TypePhone Type = "phone"
)

func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case TypeVideo, TypePhone:
		return t, nil
	}
	return "", &ValidationError{Field: "type", Reason: "must be video or phone"}
}

const DefaultSlotMinutes = 30

type Patient struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Doctor struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Specialty       string          `json:"specialty"`
	ConsultationFee decimal.Decimal `json:"consultation_fee"`
	SlotMinutes     int             `json:"slot_minutes"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (d *Doctor) slotMinutes() int {
	if d.SlotMinutes <= 0 {
		return DefaultSlotMinutes
	}
	return d.SlotMinutes
}

// Appointment is one ledger record. PatientName, DoctorName and Specialty are display copies
// taken at booking time.
type Appointment struct {
	ID          uuid.UUID       `json:"id"`
	PatientID   uuid.UUID       `json:"patient_id"`
	DoctorID    uuid.UUID       `json:"doctor_id"`
	PatientName string          `json:"patient_name"`
	DoctorName  string          `json:"doctor_name"`
	Specialty   string          `json:"specialty"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	Duration    int             `json:"duration"`
	Type        Type            `json:"type"`
	Status      Status          `json:"status"`
	Symptoms    string          `json:"symptoms"`
	Notes       string          `json:"notes,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Paid        bool            `json:"paid"`
	MeetingLink string          `json:"meeting_link,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUpdated time.Time       `json:"last_updated"`
}

// BookingRequest carries the caller's raw input; Book normalises it.
type BookingRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      string
	Time      string
	Type      string
	Symptoms  string
	Notes     string
}

type Prescription struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Medication    string     `json:"medication"`
	Instructions  string     `json:"instructions,omitempty"`
	IssuedAt      time.Time  `json:"issued_at"`
}

type PrescriptionRequest struct {
	PatientID     uuid.UUID
	AppointmentID *uuid.UUID
	Medication    string
	Instructions  string
}

// Filter narrows ListAppointments. Zero values match everything.
type Filter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    Status
}

func (f Filter) matches(a *Appointment) bool {
	if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
		return false
	}
	if f.DoctorID != uuid.Nil && a.DoctorID != f.DoctorID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
