package appointment

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/availability"
	"github.com/hackgods/telehealth-booking/internal/identity"
)

// View names accepted by Project.
const (
	ViewUpcoming  = "upcoming"
	ViewPast      = "past"
	ViewCancelled = "cancelled"
	ViewToday     = "today"
)

// SortBySchedule orders appointments by (date, time), oldest first. Ties keep creation order.
func SortBySchedule(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date < list[j].Date
		}
		if list[i].Time != list[j].Time {
			return list[i].Time < list[j].Time
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// StartsAt is the slot start in loc.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(availability.DateLayout+" 15:04", a.Date+" "+a.Time, loc)
}

func filter(list []Appointment, keep func(*Appointment) bool) []Appointment {
	out := make([]Appointment, 0, len(list))
	for i := range list {
		if keep(&list[i]) {
			out = append(out, list[i])
		}
	}
	SortBySchedule(out)
	return out
}

// Upcoming are active appointments whose slot has not started yet.
func Upcoming(list []Appointment, now time.Time) []Appointment {
	return filter(list, func(a *Appointment) bool {
		start, err := a.StartsAt(now.Location())
		return err == nil && a.Status.Active() && !start.Before(now)
	})
}

// Past are completed appointments plus active ones whose slot already started.
func Past(list []Appointment, now time.Time) []Appointment {
	return filter(list, func(a *Appointment) bool {
		if a.Status == StatusCompleted {
			return true
		}
		start, err := a.StartsAt(now.Location())
		return err == nil && a.Status.Active() && start.Before(now)
	})
}

func Cancelled(list []Appointment) []Appointment {
	return WithStatus(list, StatusCancelled)
}

func WithStatus(list []Appointment, s Status) []Appointment {
	return filter(list, func(a *Appointment) bool { return s == "" || a.Status == s })
}

// TodaySchedule is a doctor's non-cancelled appointments on today's date.
func TodaySchedule(list []Appointment, doctorID uuid.UUID, today time.Time) []Appointment {
	date := today.Format(availability.DateLayout)
	return filter(list, func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.Date == date && a.Status != StatusCancelled
	})
}

// ForActor keeps what the actor is a party to. Admins see everything.
func ForActor(list []Appointment, actor identity.Actor) []Appointment {
	return filter(list, func(a *Appointment) bool {
		return actor.IsAdmin() || isParty(actor, a)
	})
}

// Project applies a named view. Unknown or empty view names return the list sorted.
func Project(list []Appointment, view string, actor identity.Actor, now time.Time) []Appointment {
	switch view {
	case ViewUpcoming:
		return Upcoming(list, now)
	case ViewPast:
		return Past(list, now)
	case ViewCancelled:
		return Cancelled(list)
	case ViewToday:
		if actor.Role == identity.RoleDoctor {
			return TodaySchedule(list, actor.UserID, now)
		}
		date := now.Format(availability.DateLayout)
		return filter(list, func(a *Appointment) bool { return a.Date == date && a.Status != StatusCancelled })
	}
	return filter(list, func(*Appointment) bool { return true })
}

func IsValidView(view string) bool {
	switch view {
	case "", ViewUpcoming, ViewPast, ViewCancelled, ViewToday:
		return true
	}
	return false
}
