package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-booking/internal/availability"
	"github.com/hackgods/telehealth-booking/internal/events"
	"github.com/hackgods/telehealth-booking/internal/identity"
	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
)

// 2030-01-07 is a Monday.
const monday = "2030-01-07"

type fakeConferencing struct {
	err   error
	calls int
}

func (f *fakeConferencing) IssueLink(_ context.Context, a *Appointment) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://meet.test/" + a.ID.String(), nil
}

type fakePayments struct {
	approve bool
	calls   []decimal.Decimal
}

func (f *fakePayments) Capture(_ context.Context, _ uuid.UUID, amount decimal.Decimal) (bool, error) {
	f.calls = append(f.calls, amount)
	return f.approve, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc     *Service
	repo    *MemoryRepository
	avail   *availability.Service
	conf    *fakeConferencing
	pay     *fakePayments
	pub     *recordingPublisher
	doctor  Doctor
	patient Patient
}

func (f *fixture) doctorActor() identity.Actor {
	return identity.Actor{UserID: f.doctor.ID, Role: identity.RoleDoctor}
}

func (f *fixture) patientActor() identity.Actor {
	return identity.Actor{UserID: f.patient.ID, Role: identity.RolePatient}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		repo: NewMemoryRepository(),
		conf: &fakeConferencing{},
		pay:  &fakePayments{approve: true},
		pub:  &recordingPublisher{},
		doctor: Doctor{
			ID:              uuid.New(),
			Name:            "Dr. A",
			Specialty:       "Cardiology",
			ConsultationFee: decimal.RequireFromString("75.50"),
			SlotMinutes:     30,
		},
		patient: Patient{ID: uuid.New(), Name: "Pat Patient", Email: "pat@example.com"},
	}
	require.NoError(t, f.repo.UpsertDoctor(ctx, f.doctor))
	require.NoError(t, f.repo.UpsertPatient(ctx, f.patient))

	f.avail = availability.NewService(availability.NewMemoryStore(), f.repo, redisclient.NewLocalLocker(2*time.Second), zerolog.Nop())
	_, err := f.avail.SetWeekly(ctx, f.doctorActor(), f.doctor.ID, availability.Weekly{
		"monday": {"09:00", "10:00"},
	})
	require.NoError(t, err)

	f.svc = NewService(f.repo, f.avail, redisclient.NewLocalLocker(2*time.Second), Collaborators{
		Conferencing: f.conf,
		Payments:     f.pay,
		Events:       f.pub,
	}, zerolog.Nop())
	return f
}

func (f *fixture) request(slot, typ string) BookingRequest {
	return BookingRequest{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
		Date:      monday,
		Time:      slot,
		Type:      typ,
		Symptoms:  "chest pain",
	}
}

func (f *fixture) book(t *testing.T, slot, typ string) *Appointment {
	t.Helper()
	a, err := f.svc.Book(context.Background(), f.patientActor(), f.request(slot, typ))
	require.NoError(t, err)
	return a
}

func TestBookConfirmCompleteScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.book(t, "09:00", "video")
	assert.Equal(t, StatusPending, a.Status)
	assert.True(t, a.Amount.Equal(f.doctor.ConsultationFee))
	assert.Equal(t, "Dr. A", a.DoctorName)
	assert.Equal(t, "Cardiology", a.Specialty)
	assert.Equal(t, 30, a.Duration)

	open, err := f.svc.OpenSlots(ctx, f.doctor.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, open)

	a, err = f.svc.Transition(ctx, f.doctorActor(), a.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)

	a, err = f.svc.Transition(ctx, f.doctorActor(), a.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, a.Status)

	_, err = f.svc.Transition(ctx, f.doctorActor(), a.ID, StatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := f.svc.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)

	assert.Equal(t, []events.Type{
		events.AppointmentBooked,
		events.AppointmentConfirmed,
		events.AppointmentCompleted,
	}, f.pub.types())

	logs, err := f.svc.Events(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestCancelFreesSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.book(t, "10:00 AM", "phone")
	assert.Equal(t, "10:00", a.Time)

	open, err := f.svc.OpenSlots(ctx, f.doctor.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, open)

	a, err = f.svc.Cancel(ctx, f.patientActor(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)

	open, err = f.svc.OpenSlots(ctx, f.doctor.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00"}, open)

	// cancelled records stay in the ledger
	_, err = f.svc.GetAppointment(ctx, a.ID)
	assert.NoError(t, err)

	// and the freed slot can be booked again
	again := f.book(t, "10:00", "phone")
	assert.NotEqual(t, a.ID, again.ID)
}

func TestConcurrentBookingOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Book(ctx, f.patientActor(), f.request("09:00", "video"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	list, err := f.repo.ListAppointments(ctx, Filter{DoctorID: f.doctor.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMeetingLinkOnlyForVideo(t *testing.T) {
	f := newFixture(t)

	video := f.book(t, "09:00", "video")
	assert.NotEmpty(t, video.MeetingLink)

	phone := f.book(t, "10:00", "phone")
	assert.Empty(t, phone.MeetingLink)
	assert.Equal(t, 1, f.conf.calls)
}

func TestBookPreconditionOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name  string
		tweak func(*BookingRequest)
		check func(t *testing.T, err error)
	}{
		{
			name:  "time not offered",
			tweak: func(r *BookingRequest) { r.Time = "11:00" },
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrSlotUnavailable) },
		},
		{
			name:  "wrong weekday",
			tweak: func(r *BookingRequest) { r.Date = "2030-01-08" },
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrSlotUnavailable) },
		},
		{
			name: "unavailable wins over empty symptoms",
			tweak: func(r *BookingRequest) {
				r.Time = "11:00"
				r.Symptoms = ""
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrSlotUnavailable) },
		},
		{
			name:  "empty symptoms",
			tweak: func(r *BookingRequest) { r.Symptoms = "   " },
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "symptoms", verr.Field)
			},
		},
		{
			name:  "malformed date",
			tweak: func(r *BookingRequest) { r.Date = "07/01/2030" },
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
			},
		},
		{
			name:  "malformed type",
			tweak: func(r *BookingRequest) { r.Type = "carrier pigeon" },
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
			},
		},
		{
			name:  "unknown doctor",
			tweak: func(r *BookingRequest) { r.DoctorID = uuid.New() },
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotFound) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request("09:00", "video")
			tt.tweak(&req)
			_, err := f.svc.Book(ctx, f.patientActor(), req)
			tt.check(t, err)
		})
	}

	list, err := f.repo.ListAppointments(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBookBlockedSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.avail.AddBlock(ctx, f.doctorActor(), f.doctor.ID, availability.Block{
		Date: monday, StartTime: "09:00", EndTime: "09:30", Reason: "surgery",
	})
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, f.patientActor(), f.request("09:00", "video"))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	open, err := f.svc.OpenSlots(ctx, f.doctor.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, open)
}

func TestBookTakenSlotIsConflict(t *testing.T) {
	f := newFixture(t)
	f.book(t, "09:00", "phone")

	_, err := f.svc.Book(context.Background(), f.patientActor(), f.request("09:00", "phone"))
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestBookConferencingFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.conf.err = errors.New("bridge down")

	_, err := f.svc.Book(ctx, f.patientActor(), f.request("09:00", "video"))
	require.Error(t, err)

	list, err := f.repo.ListAppointments(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.pub.types())
}

func TestPatientCannotBookForSomeoneElse(t *testing.T) {
	f := newFixture(t)
	req := f.request("09:00", "phone")
	req.PatientID = uuid.New()

	_, err := f.svc.Book(context.Background(), f.patientActor(), req)
	assert.ErrorIs(t, err, ErrForbidden)
}

type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func TestLockTimeoutsAreRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, "09:00", "phone")

	busy := NewService(f.repo, f.avail, busyLocker{}, Collaborators{Conferencing: f.conf}, zerolog.Nop())

	_, err := busy.Book(ctx, f.patientActor(), f.request("10:00", "phone"))
	assert.ErrorIs(t, err, ErrSlotConflict)

	_, err = busy.Confirm(ctx, f.doctorActor(), a.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := identity.Actor{UserID: uuid.New(), Role: identity.RoleAdmin}
	stranger := identity.Actor{UserID: uuid.New(), Role: identity.RoleDoctor}

	a := f.book(t, "09:00", "phone")

	_, err := f.svc.Confirm(ctx, f.patientActor(), a.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "patients cannot confirm")

	_, err = f.svc.Confirm(ctx, stranger, a.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "only the appointment's doctor confirms")

	_, err = f.svc.Complete(ctx, f.doctorActor(), a.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending cannot complete")

	a, err = f.svc.Cancel(ctx, admin, a.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, f.doctorActor(), a.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	stored, err := f.svc.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)

	_, err = f.svc.Confirm(ctx, f.doctorActor(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentTransitionsOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, "09:00", "phone")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		lost int
	)
	actors := []identity.Actor{f.doctorActor(), f.patientActor(), f.doctorActor(), f.patientActor()}
	for _, actor := range actors {
		wg.Add(1)
		go func(actor identity.Actor) {
			defer wg.Done()
			_, err := f.svc.Cancel(ctx, actor, a.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, ErrInvalidTransition) {
				lost++
			}
		}(actor)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, len(actors)-1, lost)
}

func TestAnnotateNotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, "09:00", "phone")
	_, err := f.svc.Cancel(ctx, f.patientActor(), a.ID)
	require.NoError(t, err)

	updated, err := f.svc.AnnotateNotes(ctx, f.doctorActor(), a.ID, "patient called to reschedule")
	require.NoError(t, err)
	assert.Equal(t, "patient called to reschedule", updated.Notes)
	assert.Equal(t, StatusCancelled, updated.Status)

	_, err = f.svc.AnnotateNotes(ctx, f.patientActor(), a.ID, "hello")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Contains(t, f.pub.types(), events.AppointmentNotesUpdated)
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, "09:00", "phone")

	paid, err := f.svc.RecordPayment(ctx, f.patientActor(), a.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	assert.True(t, paid.Amount.Equal(a.Amount))
	require.Len(t, f.pay.calls, 1)
	assert.True(t, f.pay.calls[0].Equal(f.doctor.ConsultationFee))

	// already paid is a no-op
	_, err = f.svc.RecordPayment(ctx, f.patientActor(), a.ID)
	require.NoError(t, err)
	assert.Len(t, f.pay.calls, 1)

	_, err = f.svc.RecordPayment(ctx, f.doctorActor(), a.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	b := f.book(t, "10:00", "phone")
	_, err = f.svc.Cancel(ctx, f.patientActor(), b.ID)
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, f.patientActor(), b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Contains(t, f.pub.types(), events.PaymentProcessed)
}

func TestDeclinedPaymentStoresFalse(t *testing.T) {
	f := newFixture(t)
	f.pay.approve = false
	a := f.book(t, "09:00", "phone")

	got, err := f.svc.RecordPayment(context.Background(), f.patientActor(), a.ID)
	require.NoError(t, err)
	assert.False(t, got.Paid)

	f.pub.mu.Lock()
	last := f.pub.events[len(f.pub.events)-1]
	f.pub.mu.Unlock()
	assert.Equal(t, events.PaymentProcessed, last.Type)
	assert.Equal(t, "false", last.Data["paid"])
}

func TestListAppointmentsScopedToActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other := Patient{ID: uuid.New(), Name: "Other"}
	require.NoError(t, f.repo.UpsertPatient(ctx, other))

	f.book(t, "10:00", "phone")
	_, err := f.svc.Book(ctx, identity.Actor{UserID: other.ID, Role: identity.RolePatient}, BookingRequest{
		DoctorID: f.doctor.ID, Date: monday, Time: "09:00", Type: "video", Symptoms: "cough",
	})
	require.NoError(t, err)

	mine, err := f.svc.ListAppointments(ctx, f.patientActor(), "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.patient.ID, mine[0].PatientID)

	schedule, err := f.svc.ListAppointments(ctx, f.doctorActor(), StatusPending)
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	assert.Equal(t, "09:00", schedule[0].Time)
	assert.Equal(t, "10:00", schedule[1].Time)

	none, err := f.svc.ListAppointments(ctx, f.doctorActor(), StatusConfirmed)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpenSlotsNeverReturnsHeldTimes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	slots := []string{"08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00"}
	_, err := f.avail.SetWeekly(ctx, f.doctorActor(), f.doctor.ID, availability.Weekly{"monday": slots})
	require.NoError(t, err)

	booked := map[string]uuid.UUID{}
	for i, slot := range slots {
		if i%2 == 0 {
			booked[slot] = f.book(t, slot, "phone").ID
		}
	}
	// cancel one of them, confirm another
	_, err = f.svc.Cancel(ctx, f.patientActor(), booked["08:00"])
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.doctorActor(), booked["09:00"])
	require.NoError(t, err)

	open, err := f.svc.OpenSlots(ctx, f.doctor.ID, monday)
	require.NoError(t, err)

	held, err := f.repo.ActiveSlotTimes(ctx, f.doctor.ID, monday)
	require.NoError(t, err)
	for _, h := range held {
		assert.NotContains(t, open, h)
	}
	assert.Equal(t, []string{"08:00", "08:30", "09:30", "10:30"}, open)
}

func TestOpenSlotsErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.OpenSlots(ctx, uuid.New(), monday)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.OpenSlots(ctx, f.doctor.ID, "monday")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	// no hours on Tuesday is empty, not an error
	open, err := f.svc.OpenSlots(ctx, f.doctor.ID, "2030-01-08")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestIssuePrescription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, "09:00", "video")

	rx, err := f.svc.IssuePrescription(ctx, f.doctorActor(), PrescriptionRequest{
		PatientID:     f.patient.ID,
		AppointmentID: &a.ID,
		Medication:    "amoxicillin 500mg",
		Instructions:  "three times daily",
	})
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, rx.DoctorID)
	assert.Contains(t, f.pub.types(), events.PrescriptionIssued)

	_, err = f.svc.IssuePrescription(ctx, f.patientActor(), PrescriptionRequest{PatientID: f.patient.ID, Medication: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.IssuePrescription(ctx, f.doctorActor(), PrescriptionRequest{PatientID: f.patient.ID})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.IssuePrescription(ctx, f.doctorActor(), PrescriptionRequest{PatientID: uuid.New(), Medication: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "success", ErrorKind(nil))
	assert.Equal(t, "validation", ErrorKind(&ValidationError{Field: "x", Reason: "y"}))
	assert.Equal(t, "slot_unavailable", ErrorKind(ErrSlotUnavailable))
	assert.Equal(t, "slot_conflict", ErrorKind(errors.Join(errors.New("ctx"), ErrSlotConflict)))
	assert.Equal(t, "invalid_transition", ErrorKind(ErrInvalidTransition))
	assert.Equal(t, "not_found", ErrorKind(ErrDoctorNotFound))
	assert.Equal(t, "not_found", ErrorKind(availability.ErrNotFound))
	assert.Equal(t, "forbidden", ErrorKind(ErrForbidden))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
}
