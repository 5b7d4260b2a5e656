package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/events"
)

// Dispatcher turns ledger events into inbox entries.
type Dispatcher struct {
	svc *Service
}

func NewDispatcher(svc *Service) *Dispatcher {
	return &Dispatcher{svc: svc}
}

// HandleEvent matches events.Handler. Unknown event types are ignored.
func (d *Dispatcher) HandleEvent(ctx context.Context, e events.Event) error {
	var errs []error
	for _, n := range Plan(e) {
		if _, err := d.svc.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", n.RecipientID, err))
		}
	}
	return errors.Join(errs...)
}

// Plan lists the notifications e should produce, without storing them.
func Plan(e events.Event) []Notification {
	var apptID *uuid.UUID
	if e.AppointmentID != uuid.Nil {
		id := e.AppointmentID
		apptID = &id
	}
	when := fmt.Sprintf("%s at %s", e.Data["date"], e.Data["time"])

	mk := func(to uuid.UUID, typ Type, prio Priority, title, msg string) Notification {
		return Notification{
			RecipientID:   to,
			Type:          typ,
			Priority:      prio,
			Title:         title,
			Message:       msg,
			Timestamp:     e.OccurredAt,
			AppointmentID: apptID,
		}
	}

	switch e.Type {
	case events.AppointmentBooked:
		return []Notification{
			mk(e.PatientID, TypeReminder, PriorityMedium, "Appointment requested",
				fmt.Sprintf("Your %s consultation with %s on %s is pending confirmation.", e.Data["type"], e.Data["doctor"], when)),
			mk(e.DoctorID, TypeReminder, PriorityHigh, "New appointment request",
				fmt.Sprintf("A patient requested a %s consultation on %s.", e.Data["type"], when)),
		}

	case events.AppointmentConfirmed:
		return []Notification{
			mk(e.PatientID, TypeAppointment, PriorityHigh, "Appointment confirmed",
				fmt.Sprintf("%s confirmed your appointment on %s.", e.Data["doctor"], when)),
		}

	case events.AppointmentCancelled:
		var out []Notification
		msg := fmt.Sprintf("The appointment on %s was cancelled.", when)
		if e.ActorID != e.PatientID {
			out = append(out, mk(e.PatientID, TypeAppointment, PriorityMedium, "Appointment cancelled", msg))
		}
		if e.ActorID != e.DoctorID {
			out = append(out, mk(e.DoctorID, TypeAppointment, PriorityMedium, "Appointment cancelled", msg))
		}
		return out

	case events.AppointmentCompleted:
		return []Notification{
			mk(e.PatientID, TypeAppointment, PriorityLow, "Consultation completed",
				fmt.Sprintf("Your consultation with %s is complete.", e.Data["doctor"])),
		}

	case events.AppointmentNotesUpdated:
		return []Notification{
			mk(e.PatientID, TypeAppointment, PriorityLow, "Consultation notes updated",
				fmt.Sprintf("%s added notes to your appointment on %s.", e.Data["doctor"], e.Data["date"])),
		}

	case events.PrescriptionIssued:
		return []Notification{
			mk(e.PatientID, TypePrescription, PriorityHigh, "New prescription",
				fmt.Sprintf("You have been prescribed %s.", e.Data["medication"])),
		}

	case events.PaymentProcessed:
		if e.Data["paid"] == "true" {
			return []Notification{
				mk(e.PatientID, TypePayment, PriorityMedium, "Payment received",
					fmt.Sprintf("We received your payment of %s.", e.Data["amount"])),
			}
		}
		return []Notification{
			mk(e.PatientID, TypePayment, PriorityHigh, "Payment failed",
				fmt.Sprintf("Your payment of %s could not be processed.", e.Data["amount"])),
		}
	}
	return nil
}
