package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/availability"
)

type BookAppointmentRequest struct {
	PatientID string `json:"patient_id" validate:"omitempty,uuid"`
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required"`
	Type      string `json:"type" validate:"required"`
	Symptoms  string `json:"symptoms" validate:"max=2000"`
	Notes     string `json:"notes" validate:"max=4000"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type NotesRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

type WeeklyRequest struct {
	Weekly map[string][]string `json:"weekly" validate:"required"`
}

type BlockRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason" validate:"max=200"`
}

type PrescriptionRequest struct {
	PatientID     string `json:"patient_id" validate:"required,uuid"`
	AppointmentID string `json:"appointment_id" validate:"omitempty,uuid"`
	Medication    string `json:"medication" validate:"required,max=200"`
	Instructions  string `json:"instructions" validate:"max=1000"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	Specialty   string    `json:"specialty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Duration    int       `json:"duration"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Symptoms    string    `json:"symptoms"`
	Notes       string    `json:"notes,omitempty"`
	Amount      string    `json:"amount"`
	Paid        bool      `json:"paid"`
	MeetingLink string    `json:"meeting_link,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		PatientName: a.PatientName,
		DoctorName:  a.DoctorName,
		Specialty:   a.Specialty,
		Date:        a.Date,
		Time:        a.Time,
		Duration:    a.Duration,
		Type:        string(a.Type),
		Status:      string(a.Status),
		Symptoms:    a.Symptoms,
		Notes:       a.Notes,
		Amount:      a.Amount.StringFixed(2),
		Paid:        a.Paid,
		MeetingLink: a.MeetingLink,
		CreatedAt:   a.CreatedAt,
		LastUpdated: a.LastUpdated,
	}
}

func toAppointmentList(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}

type DoctorResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Specialty       string    `json:"specialty"`
	ConsultationFee string    `json:"consultation_fee"`
	SlotMinutes     int       `json:"slot_minutes"`
}

func toDoctorResponse(d *appointment.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:              d.ID,
		Name:            d.Name,
		Specialty:       d.Specialty,
		ConsultationFee: d.ConsultationFee.StringFixed(2),
		SlotMinutes:     d.SlotMinutes,
	}
}

type SlotsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
}

type AvailabilityResponse struct {
	DoctorID  uuid.UUID            `json:"doctor_id"`
	Weekly    availability.Weekly  `json:"weekly"`
	Blocks    []availability.Block `json:"blocks"`
	UpdatedAt *time.Time           `json:"updated_at,omitempty"`
}

func toAvailabilityResponse(a *availability.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{DoctorID: a.DoctorID, Weekly: a.Weekly, Blocks: a.Blocks}
	if !a.UpdatedAt.IsZero() {
		t := a.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

type EventLogResponse struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type"`
	AppointmentID *uuid.UUID      `json:"appointment_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toEventLogList(logs []appointment.EventLog) []EventLogResponse {
	out := make([]EventLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, EventLogResponse{
			ID:            l.ID,
			EventType:     l.EventType,
			AppointmentID: l.AppointmentID,
			Payload:       json.RawMessage(l.Payload),
			CreatedAt:     l.CreatedAt,
		})
	}
	return out
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
