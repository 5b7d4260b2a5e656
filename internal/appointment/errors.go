package appointment

import (
	"errors"
	"fmt"

	"github.com/hackgods/telehealth-booking/internal/availability"
)

var (
	ErrSlotUnavailable   = errors.New("requested time is not an open slot for this doctor")
	ErrSlotConflict      = errors.New("slot already booked, please retry with another time")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("actor may not perform this action")
	ErrNotFound          = errors.New("not found")

	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrDoctorNotFound      = fmt.Errorf("doctor %w", ErrNotFound)
	ErrPatientNotFound     = fmt.Errorf("patient %w", ErrNotFound)

	// errStaleStatus is returned by repositories when a compare-and-swap lost to another writer.
	errStaleStatus = errors.New("appointment status changed concurrently")
)

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// asValidation lifts availability input errors into this package's taxonomy.
func asValidation(err error) error {
	var verr *availability.ValidationError
	if errors.As(err, &verr) {
		return &ValidationError{Field: verr.Field, Reason: verr.Reason}
	}
	return err
}

// ErrorKind returns a stable label for err, used in logs and metrics.
func ErrorKind(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound), errors.Is(err, availability.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
