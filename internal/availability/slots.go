package availability

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "03:04 PM"}

// ParseClock turns a slot label such as "09:00" or "10:00 AM" into minutes after midnight.
func ParseClock(label string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(label))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("unrecognised time %q", label)
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock returns the canonical "HH:MM" label for any accepted input.
func NormalizeClock(label string) (string, error) {
	m, err := ParseClock(label)
	if err != nil {
		return "", &ValidationError{Field: "time", Reason: err.Error()}
	}
	return FormatClock(m), nil
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not YYYY-MM-DD", s)}
	}
	return t, nil
}

func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// Offered lists the labels the doctor offers on date after removing blocked ones.
// Bookings are not considered here. slotMinutes is the length of one consultation.
func (a *Availability) Offered(date string, slotMinutes int) ([]string, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return []string{}, nil
	}
	if slotMinutes <= 0 {
		slotMinutes = 30
	}

	labels := a.Weekly[WeekdayKey(day.Weekday())]
	dayKey := day.Format(DateLayout)

	out := make([]string, 0, len(labels))
	for _, label := range labels {
		start, err := ParseClock(label)
		if err != nil {
			continue
		}
		if a.blocked(dayKey, start, start+slotMinutes) {
			continue
		}
		out = append(out, FormatClock(start))
	}
	return out, nil
}

func (a *Availability) blocked(date string, start, end int) bool {
	for _, b := range a.Blocks {
		if b.Date != date {
			continue
		}
		if b.StartTime == "" && b.EndTime == "" {
			return true
		}
		bs, err1 := ParseClock(b.StartTime)
		be, err2 := ParseClock(b.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if start < be && bs < end {
			return true
		}
	}
	return false
}

// OpenSlots is Offered minus the labels in taken. Always returns a non-nil slice;
// empty means nothing bookable that day.
func (a *Availability) OpenSlots(date string, slotMinutes int, taken []string) ([]string, error) {
	offered, err := a.Offered(date, slotMinutes)
	if err != nil {
		return nil, err
	}

	held := make(map[string]bool, len(taken))
	for _, t := range taken {
		if m, err := ParseClock(t); err == nil {
			held[FormatClock(m)] = true
		}
	}

	open := make([]string, 0, len(offered))
	for _, label := range offered {
		if !held[label] {
			open = append(open, label)
		}
	}
	return open, nil
}

// IsOffered reports whether label is an offered, unblocked slot on date.
func (a *Availability) IsOffered(date, label string, slotMinutes int) (bool, error) {
	want, err := NormalizeClock(label)
	if err != nil {
		return false, err
	}
	offered, err := a.Offered(date, slotMinutes)
	if err != nil {
		return false, err
	}
	for _, l := range offered {
		if l == want {
			return true, nil
		}
	}
	return false, nil
}
