package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/availability"
	"github.com/hackgods/telehealth-booking/internal/identity"
	"github.com/hackgods/telehealth-booking/internal/logging"
	"github.com/hackgods/telehealth-booking/internal/notification"
)

// handleServiceError maps domain errors onto HTTP responses. Unknown errors are logged
// and reported as 500 without their text.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		apptValidation  *appointment.ValidationError
		availValidation *availability.ValidationError
	)

	switch {
	case errors.As(err, &apptValidation):
		writeError(w, http.StatusBadRequest, "validation_error", apptValidation.Error())
	case errors.As(err, &availValidation):
		writeError(w, http.StatusBadRequest, "validation_error", availValidation.Error())

	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, notification.ErrNotFound):
		writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
	case errors.Is(err, appointment.ErrNotFound),
		errors.Is(err, availability.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, appointment.ErrForbidden),
		errors.Is(err, availability.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())

	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, availability.ErrEditBusy):
		writeError(w, http.StatusConflict, "edit_conflict", err.Error())

	case errors.Is(err, identity.ErrMissingIdentity),
		errors.Is(err, identity.ErrInvalidIdentity):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())

	default:
		log := logging.FromContext(r.Context(), zerolog.Nop())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}

func writeIdentityError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
}
