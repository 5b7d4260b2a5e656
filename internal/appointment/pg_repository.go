package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hackgods/telehealth-booking/internal/db"
)

// activeSlotIndex is the partial unique index over (doctor_id, appt_date, slot_time)
// for pending and confirmed rows.
const activeSlotIndex = "appointments_active_slot_uq"

const appointmentColumns = `
	id, patient_id, doctor_id, patient_name, doctor_name, specialty,
	to_char(appt_date, 'YYYY-MM-DD'), slot_time, duration_minutes, type, status,
	symptoms, notes, amount::text, paid, COALESCE(meeting_link, ''), created_at, updated_at`

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var fee string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&fee,
		&d.SlotMinutes,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	if d.ConsultationFee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("parse consultation fee %q: %w", fee, err)
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var typ, status, amount string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.PatientName,
		&a.DoctorName,
		&a.Specialty,
		&a.Date,
		&a.Time,
		&a.Duration,
		&typ,
		&status,
		&a.Symptoms,
		&a.Notes,
		&amount,
		&a.Paid,
		&a.MeetingLink,
		&a.CreatedAt,
		&a.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Type = Type(typ)
	a.Status = Status(status)
	if a.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &a, nil
}

// Directory

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(email, ''), created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, consultation_fee::text, slot_minutes, created_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, consultation_fee::text, slot_minutes, created_at
		FROM doctors
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	result := make([]Doctor, 0)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) HasDoctor(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check doctor: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) UpsertPatient(ctx context.Context, p Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, name, email, created_at)
		VALUES ($1, $2, NULLIF($3, ''), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email
	`, p.ID, p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("upsert patient: %w", err)
	}
	return nil
}

func (r *PgRepository) UpsertDoctor(ctx context.Context, d Doctor) error {
	slot := d.SlotMinutes
	if slot <= 0 {
		slot = DefaultSlotMinutes
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (id, name, specialty, consultation_fee, slot_minutes, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    specialty = EXCLUDED.specialty,
		    consultation_fee = EXCLUDED.consultation_fee,
		    slot_minutes = EXCLUDED.slot_minutes
	`, d.ID, d.Name, d.Specialty, d.ConsultationFee.String(), slot)
	if err != nil {
		return fmt.Errorf("upsert doctor: %w", err)
	}
	return nil
}

// Ledger

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.DoctorID != uuid.Nil {
		args = append(args, f.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY appt_date, slot_time, created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ActiveSlotTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_time
		FROM appointments
		WHERE doctor_id = $1
		  AND appt_date = $2::date
		  AND status IN ('pending', 'confirmed')
		ORDER BY slot_time
	`, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list held slots: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		result = append(result, slot)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, patient_name, doctor_name, specialty,
			appt_date, slot_time, duration_minutes, type, status,
			symptoms, notes, amount, paid, meeting_link, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10, $11, $12, $13, $14::numeric, $15, NULLIF($16, ''), $17, $18)
	`,
		a.ID, a.PatientID, a.DoctorID, a.PatientName, a.DoctorName, a.Specialty,
		a.Date, a.Time, a.Duration, string(a.Type), string(a.Status),
		a.Symptoms, a.Notes, a.Amount.String(), a.Paid, a.MeetingLink, a.CreatedAt, a.LastUpdated,
	)
	if err != nil {
		if db.IsUniqueViolation(err, activeSlotIndex) {
			return ErrSlotConflict
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $4
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, string(to), string(from), at)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		// the row either vanished or moved on; tell the two apart
		if _, getErr := r.GetAppointment(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, errStaleStatus
	}
	return a, err
}

func (r *PgRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET notes = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+appointmentColumns, id, notes, at)
	return scanAppointment(row)
}

func (r *PgRepository) SetPaid(ctx context.Context, id uuid.UUID, paid bool, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET paid = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+appointmentColumns, id, paid, at)
	return scanAppointment(row)
}

// Event logging

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (r *PgRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at
		FROM event_logs
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list event logs: %w", err)
	}
	defer rows.Close()

	result := make([]EventLog, 0)
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
