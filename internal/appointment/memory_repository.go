package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type slotKey struct {
	doctorID uuid.UUID
	date     string
	time     string
}

// MemoryRepository is the in-process ledger. One mutex guards the whole table, so every
// method is atomic with respect to the others.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	doctors      map[uuid.UUID]Doctor
	appointments map[uuid.UUID]*Appointment
	active       map[slotKey]uuid.UUID
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		doctors:      make(map[uuid.UUID]Doctor),
		appointments: make(map[uuid.UUID]*Appointment),
		active:       make(map[slotKey]uuid.UUID),
	}
}

func keyOf(a *Appointment) slotKey {
	return slotKey{doctorID: a.DoctorID, date: a.Date, time: a.Time}
}

func (r *MemoryRepository) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) ListDoctors(_ context.Context) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MemoryRepository) HasDoctor(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.doctors[id]
	return ok, nil
}

func (r *MemoryRepository) UpsertPatient(_ context.Context, p Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.patients[p.ID] = p
	return nil
}

func (r *MemoryRepository) UpsertDoctor(_ context.Context, d Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	r.doctors[d.ID] = d
	return nil
}

func (r *MemoryRepository) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Appointment, 0)
	for _, a := range r.appointments {
		if f.matches(a) {
			out = append(out, *a)
		}
	}
	SortBySchedule(out)
	return out, nil
}

func (r *MemoryRepository) ActiveSlotTimes(_ context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for k := range r.active {
		if k.doctorID == doctorID && k.date == date {
			out = append(out, k.time)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) InsertAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := keyOf(a)
	if a.Status.Active() {
		if _, taken := r.active[k]; taken {
			return ErrSlotConflict
		}
		r.active[k] = a.ID
	}
	cp := *a
	r.appointments[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, errStaleStatus
	}

	a.Status = to
	a.LastUpdated = at
	if !to.Active() {
		k := keyOf(a)
		if r.active[k] == a.ID {
			delete(r.active, k)
		}
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) UpdateNotes(_ context.Context, id uuid.UUID, notes string, at time.Time) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) {
		a.Notes = notes
		a.LastUpdated = at
	})
}

func (r *MemoryRepository) SetPaid(_ context.Context, id uuid.UUID, paid bool, at time.Time) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) {
		a.Paid = paid
		a.LastUpdated = at
	})
}

func (r *MemoryRepository) mutate(id uuid.UUID, fn func(*Appointment)) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	fn(a)
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *MemoryRepository) ListEvents(_ context.Context, appointmentID uuid.UUID) ([]EventLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, 0)
	for _, ev := range r.events {
		if ev.AppointmentID != nil && *ev.AppointmentID == appointmentID {
			out = append(out, ev)
		}
	}
	return out, nil
}
