// Package seed generates fake doctors, patients and weekly schedules for local
// environments and load tests.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/availability"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var symptoms = []string{
	"persistent cough",
	"recurring headaches",
	"skin rash on forearms",
	"lower back pain",
	"trouble sleeping",
	"seasonal allergies",
	"mild fever and fatigue",
	"follow-up on blood work",
	"knee pain after running",
	"prescription renewal",
}

var workdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Writer is the part of the ledger the seeder fills.
type Writer interface {
	UpsertDoctor(ctx context.Context, d appointment.Doctor) error
	UpsertPatient(ctx context.Context, p appointment.Patient) error
}

type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator with seed 0 uses a random seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

func (g *Generator) Doctor() appointment.Doctor {
	fee := decimal.NewFromInt(int64(g.faker.Number(8, 30) * 5))
	return appointment.Doctor{
		ID:              uuid.New(),
		Name:            "Dr. " + g.faker.Name(),
		Specialty:       g.faker.RandomString(specialties),
		ConsultationFee: fee,
		SlotMinutes:     []int{20, 30, 30, 45}[g.faker.Number(0, 3)],
	}
}

func (g *Generator) Patient() appointment.Patient {
	return appointment.Patient{
		ID:    uuid.New(),
		Name:  g.faker.Name(),
		Email: g.faker.Email(),
	}
}

// Weekly offers three to five workdays, each a contiguous run of slots starting
// between 08:00 and 11:00.
func (g *Generator) Weekly(slotMinutes int) availability.Weekly {
	if slotMinutes <= 0 {
		slotMinutes = appointment.DefaultSlotMinutes
	}
	out := make(availability.Weekly)
	for _, day := range g.pickDays(g.faker.Number(3, 5)) {
		start := g.faker.Number(8, 11) * 60
		count := g.faker.Number(4, 12)
		labels := make([]string, 0, count)
		for j := 0; j < count; j++ {
			m := start + j*slotMinutes
			if m >= 24*60 {
				break
			}
			labels = append(labels, availability.FormatClock(m))
		}
		out[availability.WeekdayKey(day)] = labels
	}
	return out
}

func (g *Generator) pickDays(n int) []time.Weekday {
	days := append([]time.Weekday(nil), workdays...)
	for i := len(days) - 1; i > 0; i-- {
		j := g.faker.Number(0, i)
		days[i], days[j] = days[j], days[i]
	}
	return days[:n]
}

func (g *Generator) Symptoms() string {
	return g.faker.RandomString(symptoms)
}

type Result struct {
	Doctors  []appointment.Doctor
	Patients []appointment.Patient
}

// Populate writes doctors with schedules and patients through the given stores.
func Populate(ctx context.Context, g *Generator, w Writer, store availability.Store, doctors, patients int) (Result, error) {
	res := Result{
		Doctors:  make([]appointment.Doctor, 0, doctors),
		Patients: make([]appointment.Patient, 0, patients),
	}

	for i := 0; i < doctors; i++ {
		d := g.Doctor()
		if err := w.UpsertDoctor(ctx, d); err != nil {
			return res, fmt.Errorf("seed doctor %d: %w", i, err)
		}

		weekly, err := availability.NormalizeWeekly(g.Weekly(d.SlotMinutes))
		if err != nil {
			return res, fmt.Errorf("seed schedule for %s: %w", d.ID, err)
		}
		a := availability.Empty(d.ID)
		a.Weekly = weekly
		a.UpdatedAt = time.Now().UTC()
		if err := store.Save(ctx, a); err != nil {
			return res, fmt.Errorf("seed schedule for %s: %w", d.ID, err)
		}
		res.Doctors = append(res.Doctors, d)
	}

	for i := 0; i < patients; i++ {
		p := g.Patient()
		if err := w.UpsertPatient(ctx, p); err != nil {
			return res, fmt.Errorf("seed patient %d: %w", i, err)
		}
		res.Patients = append(res.Patients, p)
	}
	return res, nil
}
