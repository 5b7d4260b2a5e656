package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "patient_id", "doctor_id", "patient_name", "doctor_name", "specialty",
	"appt_date", "slot_time", "duration_minutes", "type", "status",
	"symptoms", "notes", "amount", "paid", "meeting_link", "created_at", "updated_at",
}

func appointmentRow(a Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentCols).AddRow(
		a.ID, a.PatientID, a.DoctorID, a.PatientName, a.DoctorName, a.Specialty,
		a.Date, a.Time, a.Duration, string(a.Type), string(a.Status),
		a.Symptoms, a.Notes, a.Amount.String(), a.Paid, a.MeetingLink, a.CreatedAt, a.LastUpdated,
	)
}

func sampleAppointment() Appointment {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	return Appointment{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		DoctorID:    uuid.New(),
		PatientName: "Pat",
		DoctorName:  "Dr. A",
		Specialty:   "Cardiology",
		Date:        "2030-01-07",
		Time:        "09:00",
		Duration:    30,
		Type:        TypeVideo,
		Status:      StatusPending,
		Symptoms:    "cough",
		Amount:      decimal.RequireFromString("75.50"),
		MeetingLink: "https://meet.test/room",
		CreatedAt:   now,
		LastUpdated: now,
	}
}

func TestPgGetAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleAppointment()
	mock.ExpectQuery("FROM appointments").
		WithArgs(want.ID).
		WillReturnRows(appointmentRow(want))

	got, err := NewPgRepository(mock).GetAppointment(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, TypeVideo, got.Type)
	assert.True(t, want.Amount.Equal(got.Amount))
	assert.Equal(t, "https://meet.test/room", got.MeetingLink)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetAppointmentMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM appointments").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = NewPgRepository(mock).GetAppointment(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPgInsertAppointmentUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	args := make([]any, len(appointmentCols))
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeSlotIndex})

	err = NewPgRepository(mock).InsertAppointment(context.Background(), &a)
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(
			a.ID, a.PatientID, a.DoctorID, a.PatientName, a.DoctorName, a.Specialty,
			a.Date, a.Time, a.Duration, "video", "pending",
			a.Symptoms, a.Notes, "75.5", false, a.MeetingLink, a.CreatedAt, a.LastUpdated,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPgRepository(mock).InsertAppointment(context.Background(), &a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusCompareAndSwap(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	at := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	confirmed := a
	confirmed.Status = StatusConfirmed

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(a.ID, "confirmed", "pending", at).
		WillReturnRows(appointmentRow(confirmed))

	repo := NewPgRepository(mock)
	got, err := repo.UpdateStatus(context.Background(), a.ID, StatusPending, StatusConfirmed, at)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	// second writer loses: no row matched the expected status, but the row exists
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(a.ID, "cancelled", "pending", at).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM appointments").
		WithArgs(a.ID).
		WillReturnRows(appointmentRow(confirmed))

	_, err = repo.UpdateStatus(context.Background(), a.ID, StatusPending, StatusCancelled, at)
	assert.ErrorIs(t, err, errStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgActiveSlotTimes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doc := uuid.New()
	mock.ExpectQuery("SELECT slot_time").
		WithArgs(doc, "2030-01-07").
		WillReturnRows(pgxmock.NewRows([]string{"slot_time"}).AddRow("09:00").AddRow("10:00"))

	got, err := NewPgRepository(mock).ActiveSlotTimes(context.Background(), doc, "2030-01-07")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00"}, got)
}

func TestPgListAppointmentsFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	mock.ExpectQuery(`WHERE doctor_id = \$1 AND status = \$2`).
		WithArgs(a.DoctorID, "pending").
		WillReturnRows(appointmentRow(a))

	got, err := NewPgRepository(mock).ListAppointments(context.Background(), Filter{DoctorID: a.DoctorID, Status: StatusPending})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestPgGetDoctor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	created := time.Now().UTC()
	mock.ExpectQuery("FROM doctors").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "specialty", "fee", "slot_minutes", "created_at"}).
			AddRow(id, "Dr. A", "Cardiology", "120.00", 30, created))

	d, err := NewPgRepository(mock).GetDoctor(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Dr. A", d.Name)
	assert.True(t, d.ConsultationFee.Equal(decimal.NewFromInt(120)))
}
