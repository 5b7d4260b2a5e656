package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hackgods/telehealth-booking/internal/availability"
	"github.com/hackgods/telehealth-booking/internal/events"
	"github.com/hackgods/telehealth-booking/internal/identity"
	"github.com/hackgods/telehealth-booking/internal/metrics"
	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
)

// AvailabilitySource yields a doctor's declared hours. *availability.Service implements it.
type AvailabilitySource interface {
	Get(ctx context.Context, doctorID uuid.UUID) (*availability.Availability, error)
}

// PaymentCollaborator captures the fee for an appointment and reports whether it was paid.
type PaymentCollaborator interface {
	Capture(ctx context.Context, appointmentID uuid.UUID, amount decimal.Decimal) (bool, error)
}

// Conferencing issues an opaque join URI for a video appointment.
type Conferencing interface {
	IssueLink(ctx context.Context, a *Appointment) (string, error)
}

type Collaborators struct {
	Conferencing Conferencing
	Payments     PaymentCollaborator
	Events       events.Publisher
	Metrics      *metrics.Metrics
}

type Service struct {
	repo    Repository
	avail   AvailabilitySource
	locker  redisclient.Locker
	conf    Conferencing
	pay     PaymentCollaborator
	events  events.Publisher
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, avail AvailabilitySource, locker redisclient.Locker, c Collaborators, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		avail:   avail,
		locker:  locker,
		conf:    c.Conferencing,
		pay:     c.Payments,
		events:  c.Events,
		metrics: c.Metrics,
		logger:  logger.With().Str("service", "appointment").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Directory

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return s.repo.ListDoctors(ctx)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

// OpenSlots lists the bookable labels for one doctor on one date, ordered.
// An empty result means nothing is bookable; it is not an error.
func (s *Service) OpenSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	day, err := availability.NormalizeDate(date)
	if err != nil {
		return nil, asValidation(err)
	}
	doctor, err := s.repo.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	av, err := s.avail.Get(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	taken, err := s.repo.ActiveSlotTimes(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	return av.OpenSlots(day, doctor.slotMinutes(), taken)
}

// Book validates a request against the doctor's offering and the ledger, then commits a
// pending appointment. Either the whole record is stored or nothing is.
func (s *Service) Book(ctx context.Context, actor identity.Actor, req BookingRequest) (*Appointment, error) {
	created, err := s.book(ctx, actor, req)
	s.metrics.ObserveBooking(ErrorKind(err))
	if err != nil {
		s.logger.Info().
			Err(err).
			Str("doctor_id", req.DoctorID.String()).
			Str("date", req.Date).
			Str("time", req.Time).
			Str("kind", ErrorKind(err)).
			Msg("booking rejected")
		return nil, err
	}

	s.emit(ctx, actor, events.AppointmentBooked, created, map[string]string{
		"date":   created.Date,
		"time":   created.Time,
		"type":   string(created.Type),
		"doctor": created.DoctorName,
	})
	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("date", created.Date).
		Str("time", created.Time).
		Msg("appointment booked")
	return created, nil
}

func (s *Service) book(ctx context.Context, actor identity.Actor, req BookingRequest) (*Appointment, error) {
	if actor.Role == identity.RolePatient {
		if req.PatientID == uuid.Nil {
			req.PatientID = actor.UserID
		}
		if req.PatientID != actor.UserID {
			return nil, fmt.Errorf("%w: patients book only for themselves", ErrForbidden)
		}
	}

	date, err := availability.NormalizeDate(req.Date)
	if err != nil {
		return nil, asValidation(err)
	}
	slot, err := availability.NormalizeClock(req.Time)
	if err != nil {
		return nil, asValidation(err)
	}
	typ, err := ParseType(req.Type)
	if err != nil {
		return nil, err
	}

	patient, err := s.repo.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.repo.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	var created *Appointment
	started := time.Now()

	err = s.locker.WithLock(ctx, redisclient.SlotKey(doctor.ID, date, slot), func(lockCtx context.Context) error {
		// 1. offered and not blocked
		av, err := s.avail.Get(lockCtx, doctor.ID)
		if err != nil {
			return fmt.Errorf("load availability: %w", err)
		}
		offered, err := av.IsOffered(date, slot, doctor.slotMinutes())
		if err != nil {
			return asValidation(err)
		}
		if !offered {
			return ErrSlotUnavailable
		}

		// 2. symptoms
		symptoms := strings.TrimSpace(req.Symptoms)
		if symptoms == "" {
			return &ValidationError{Field: "symptoms", Reason: "required"}
		}

		// 3. nobody holds the slot
		taken, err := s.repo.ActiveSlotTimes(lockCtx, doctor.ID, date)
		if err != nil {
			return err
		}
		for _, t := range taken {
			if t == slot {
				return ErrSlotConflict
			}
		}

		now := s.now()
		appt := &Appointment{
			ID:          uuid.New(),
			PatientID:   patient.ID,
			DoctorID:    doctor.ID,
			PatientName: patient.Name,
			DoctorName:  doctor.Name,
			Specialty:   doctor.Specialty,
			Date:        date,
			Time:        slot,
			Duration:    doctor.slotMinutes(),
			Type:        typ,
			Status:      StatusPending,
			Symptoms:    symptoms,
			Notes:       strings.TrimSpace(req.Notes),
			Amount:      doctor.ConsultationFee,
			CreatedAt:   now,
			LastUpdated: now,
		}

		if typ == TypeVideo {
			link, err := s.issueLink(lockCtx, appt)
			if err != nil {
				return err
			}
			appt.MeetingLink = link
		}

		if err := s.repo.InsertAppointment(lockCtx, appt); err != nil {
			return err
		}
		created = appt
		return nil
	})
	s.metrics.ObserveCriticalSection("booking", time.Since(started))

	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, fmt.Errorf("%w: slot is being booked by another request", ErrSlotConflict)
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) issueLink(ctx context.Context, a *Appointment) (string, error) {
	if s.conf == nil {
		return "", errors.New("no conferencing collaborator configured")
	}
	link, err := s.conf.IssueLink(ctx, a)
	if err != nil {
		return "", fmt.Errorf("issue meeting link: %w", err)
	}
	if link == "" {
		return "", errors.New("issue meeting link: empty link")
	}
	return link, nil
}

// Lifecycle

// Transition moves an appointment to target. At most one of several concurrent transitions
// on the same appointment wins; the others fail with ErrInvalidTransition.
func (s *Service) Transition(ctx context.Context, actor identity.Actor, id uuid.UUID, target Status) (*Appointment, error) {
	var (
		from    Status
		updated *Appointment
	)
	err := s.withAppointment(ctx, id, func(lockCtx context.Context, cur *Appointment) error {
		if err := checkTransition(actor, cur, target); err != nil {
			return err
		}
		next, err := s.repo.UpdateStatus(lockCtx, id, cur.Status, target, s.now())
		if errors.Is(err, errStaleStatus) {
			return fmt.Errorf("%w: appointment changed concurrently", ErrInvalidTransition)
		}
		if err != nil {
			return err
		}
		from, updated = cur.Status, next
		return nil
	})
	s.metrics.ObserveTransition(string(target), ErrorKind(err))
	if err != nil {
		return nil, err
	}

	s.emit(ctx, actor, transitionEvent(target), updated, map[string]string{
		"from":   string(from),
		"to":     string(target),
		"date":   updated.Date,
		"time":   updated.Time,
		"doctor": updated.DoctorName,
	})
	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", string(from)).
		Str("to", string(target)).
		Str("actor_role", string(actor.Role)).
		Msg("appointment transitioned")
	return updated, nil
}

func (s *Service) Confirm(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, actor, id, StatusConfirmed)
}

func (s *Service) Complete(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, actor, id, StatusCompleted)
}

// Cancel frees the slot; the record stays in the ledger.
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, actor, id, StatusCancelled)
}

func transitionEvent(to Status) events.Type {
	switch to {
	case StatusConfirmed:
		return events.AppointmentConfirmed
	case StatusCompleted:
		return events.AppointmentCompleted
	default:
		return events.AppointmentCancelled
	}
}

// AnnotateNotes sets the doctor's notes in any state without changing status.
func (s *Service) AnnotateNotes(ctx context.Context, actor identity.Actor, id uuid.UUID, notes string) (*Appointment, error) {
	var updated *Appointment
	err := s.withAppointment(ctx, id, func(lockCtx context.Context, cur *Appointment) error {
		if err := checkAnnotate(actor, cur); err != nil {
			return err
		}
		next, err := s.repo.UpdateNotes(lockCtx, id, notes, s.now())
		if err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, actor, events.AppointmentNotesUpdated, updated, map[string]string{
		"doctor": updated.DoctorName,
		"date":   updated.Date,
	})
	return updated, nil
}

// RecordPayment asks the payment collaborator to capture the stored amount and keeps
// the resulting flag. Amount itself never changes.
func (s *Service) RecordPayment(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	var (
		updated  *Appointment
		captured bool
	)
	err := s.withAppointment(ctx, id, func(lockCtx context.Context, cur *Appointment) error {
		if !actor.IsAdmin() && !(actor.Role == identity.RolePatient && isParty(actor, cur)) {
			return fmt.Errorf("%w: only the patient may pay", ErrForbidden)
		}
		if cur.Status.Terminal() {
			return fmt.Errorf("%w: cannot pay for a %s appointment", ErrInvalidTransition, cur.Status)
		}
		if cur.Paid {
			updated = cur
			return nil
		}
		if s.pay == nil {
			return errors.New("no payment collaborator configured")
		}

		paid, err := s.pay.Capture(lockCtx, cur.ID, cur.Amount)
		if err != nil {
			return fmt.Errorf("capture payment: %w", err)
		}
		next, err := s.repo.SetPaid(lockCtx, id, paid, s.now())
		if err != nil {
			return err
		}
		updated, captured = next, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if captured {
		s.emit(ctx, actor, events.PaymentProcessed, updated, map[string]string{
			"paid":   fmt.Sprintf("%t", updated.Paid),
			"amount": updated.Amount.StringFixed(2),
		})
	}
	return updated, nil
}

// withAppointment loads id under its lock and hands the current record to fn.
func (s *Service) withAppointment(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, cur *Appointment) error) error {
	started := time.Now()
	err := s.locker.WithLock(ctx, redisclient.AppointmentKey(id), func(lockCtx context.Context) error {
		cur, err := s.repo.GetAppointment(lockCtx, id)
		if err != nil {
			return err
		}
		return fn(lockCtx, cur)
	})
	s.metrics.ObserveCriticalSection("appointment", time.Since(started))

	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("%w: appointment is being modified", ErrInvalidTransition)
	}
	return err
}

// Reads

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

// ListAppointments returns the actor's appointments, ordered by (date, time).
// Patients see their own, doctors their own schedule, admins everything.
func (s *Service) ListAppointments(ctx context.Context, actor identity.Actor, status Status) ([]Appointment, error) {
	f := Filter{Status: status}
	switch actor.Role {
	case identity.RolePatient:
		f.PatientID = actor.UserID
	case identity.RoleDoctor:
		f.DoctorID = actor.UserID
	}
	return s.repo.ListAppointments(ctx, f)
}

func (s *Service) Events(ctx context.Context, id uuid.UUID) ([]EventLog, error) {
	if _, err := s.repo.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, id)
}

// Prescriptions

// IssuePrescription records a prescription event for a patient. Only doctors and admins may.
func (s *Service) IssuePrescription(ctx context.Context, actor identity.Actor, req PrescriptionRequest) (*Prescription, error) {
	if actor.Role != identity.RoleDoctor && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only doctors issue prescriptions", ErrForbidden)
	}
	medication := strings.TrimSpace(req.Medication)
	if medication == "" {
		return nil, &ValidationError{Field: "medication", Reason: "required"}
	}
	if _, err := s.repo.GetPatient(ctx, req.PatientID); err != nil {
		return nil, err
	}

	rx := &Prescription{
		ID:            uuid.New(),
		PatientID:     req.PatientID,
		DoctorID:      actor.UserID,
		AppointmentID: req.AppointmentID,
		Medication:    medication,
		Instructions:  strings.TrimSpace(req.Instructions),
		IssuedAt:      s.now(),
	}

	subject := &Appointment{PatientID: req.PatientID, DoctorID: actor.UserID}
	if req.AppointmentID != nil {
		appt, err := s.repo.GetAppointment(ctx, *req.AppointmentID)
		if err != nil {
			return nil, err
		}
		if appt.PatientID != req.PatientID {
			return nil, &ValidationError{Field: "appointment_id", Reason: "belongs to another patient"}
		}
		if !actor.IsAdmin() && appt.DoctorID != actor.UserID {
			return nil, fmt.Errorf("%w: not the treating doctor", ErrForbidden)
		}
		rx.DoctorID = appt.DoctorID
		subject = appt
	}

	s.emit(ctx, actor, events.PrescriptionIssued, subject, map[string]string{
		"prescription_id": rx.ID.String(),
		"medication":      rx.Medication,
		"instructions":    rx.Instructions,
	})
	return rx, nil
}

// emit logs the event to the ledger's audit trail and publishes it. Both happen after
// commit, so failures are logged and never undo the committed change.
func (s *Service) emit(ctx context.Context, actor identity.Actor, typ events.Type, a *Appointment, data map[string]string) {
	ev := events.Event{
		ID:            uuid.New(),
		Type:          typ,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		ActorID:       actor.UserID,
		ActorRole:     string(actor.Role),
		OccurredAt:    s.now(),
		Data:          data,
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal event payload")
		payload = nil
	}

	log := EventLog{EventType: string(typ), Payload: payload, CreatedAt: ev.OccurredAt}
	if a.ID != uuid.Nil {
		apptID := a.ID
		log.AppointmentID = &apptID
	}
	if err := s.repo.InsertEvent(ctx, log); err != nil {
		s.logger.Error().Err(err).Str("event_type", string(typ)).Str("appointment_id", a.ID.String()).Msg("failed to insert event log")
	}

	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("event_type", string(typ)).Msg("failed to publish event")
	}
}
