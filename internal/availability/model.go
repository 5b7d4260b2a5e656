package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("availability: not found")
	ErrForbidden = errors.New("availability: only the owning doctor may edit")
	ErrEditBusy  = errors.New("availability: another edit is in progress")
)

// ValidationError reports a malformed availability input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Weekly maps a lowercase weekday name ("monday") to the offered start labels.
type Weekly map[string][]string

// Block takes a doctor out of service for part of, or all of, one date.
// Empty StartTime and EndTime mean the whole day.
type Block struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

type Availability struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Weekly    Weekly    `json:"weekly"`
	Blocks    []Block   `json:"blocks"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty is what a doctor without declared hours looks like.
func Empty(doctorID uuid.UUID) *Availability {
	return &Availability{DoctorID: doctorID, Weekly: Weekly{}, Blocks: []Block{}}
}

func (a *Availability) clone() *Availability {
	out := &Availability{
		DoctorID:  a.DoctorID,
		Weekly:    make(Weekly, len(a.Weekly)),
		Blocks:    append([]Block{}, a.Blocks...),
		UpdatedAt: a.UpdatedAt,
	}
	for day, labels := range a.Weekly {
		out.Weekly[day] = append([]string(nil), labels...)
	}
	return out
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func WeekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// NormalizeWeekly validates weekday keys and labels and returns the canonical form:
// lowercase keys, "HH:MM" labels, deduplicated and sorted. Days with no labels are dropped.
func NormalizeWeekly(in Weekly) (Weekly, error) {
	byDay := make(map[string]map[int]bool, len(in))
	for rawDay, labels := range in {
		day := strings.ToLower(strings.TrimSpace(rawDay))
		if _, ok := weekdays[day]; !ok {
			return nil, &ValidationError{Field: "weekly", Reason: fmt.Sprintf("unknown weekday %q", rawDay)}
		}
		if byDay[day] == nil {
			byDay[day] = make(map[int]bool, len(labels))
		}
		for _, l := range labels {
			m, err := ParseClock(l)
			if err != nil {
				return nil, &ValidationError{Field: "weekly." + day, Reason: err.Error()}
			}
			byDay[day][m] = true
		}
	}

	out := make(Weekly, len(byDay))
	for day, set := range byDay {
		if len(set) == 0 {
			continue
		}
		mins := make([]int, 0, len(set))
		for m := range set {
			mins = append(mins, m)
		}
		sort.Ints(mins)

		canon := make([]string, 0, len(mins))
		for _, m := range mins {
			canon = append(canon, FormatClock(m))
		}
		out[day] = canon
	}
	return out, nil
}

// NormalizeBlock validates b and rewrites its times canonically.
func NormalizeBlock(b Block) (Block, error) {
	date, err := NormalizeDate(b.Date)
	if err != nil {
		return Block{}, err
	}
	b.Date = date

	if b.StartTime == "" && b.EndTime == "" {
		return b, nil
	}
	if b.StartTime == "" || b.EndTime == "" {
		return Block{}, &ValidationError{Field: "block", Reason: "start_time and end_time must be given together"}
	}

	start, err := ParseClock(b.StartTime)
	if err != nil {
		return Block{}, &ValidationError{Field: "block.start_time", Reason: err.Error()}
	}
	end, err := ParseClock(b.EndTime)
	if err != nil {
		return Block{}, &ValidationError{Field: "block.end_time", Reason: err.Error()}
	}
	if end <= start {
		return Block{}, &ValidationError{Field: "block", Reason: "end_time must be after start_time"}
	}
	b.StartTime = FormatClock(start)
	b.EndTime = FormatClock(end)
	return b, nil
}
