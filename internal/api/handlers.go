package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/identity"
)

func actorFrom(r *http.Request) identity.Actor {
	a, _ := identity.FromContext(r.Context())
	return a
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		doctorID, ok := parseUUID(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}
		var patientID uuid.UUID
		if req.PatientID != "" {
			if patientID, ok = parseUUID(w, req.PatientID, "patient_id"); !ok {
				return
			}
		}

		appt, err := svc.Book(r.Context(), actorFrom(r), appointment.BookingRequest{
			PatientID: patientID,
			DoctorID:  doctorID,
			Date:      req.Date,
			Time:      req.Time,
			Type:      req.Type,
			Symptoms:  req.Symptoms,
			Notes:     req.Notes,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status appointment.Status
		if raw := r.URL.Query().Get("status"); raw != "" {
			s, err := appointment.ParseStatus(raw)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			status = s
		}
		view := r.URL.Query().Get("view")
		if !appointment.IsValidView(view) {
			writeError(w, http.StatusBadRequest, "validation_error", "view must be upcoming, past, cancelled or today")
			return
		}

		actor := actorFrom(r)
		list, err := svc.ListAppointments(r.Context(), actor, status)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		visible := appointment.ForActor(list, actor)
		writeJSON(w, http.StatusOK, toAppointmentList(appointment.Project(visible, view, actor, now())))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}
		var req TransitionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		target, err := appointment.ParseStatus(req.Status)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		appt, err := svc.Transition(r.Context(), actorFrom(r), id, target)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// fixedTransitionHandler serves the confirm/complete/cancel shortcuts.
func fixedTransitionHandler(svc *appointment.Service, target appointment.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		appt, err := svc.Transition(r.Context(), actorFrom(r), id, target)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func annotateNotesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}
		var req NotesRequest
		if !decodeBody(w, r, &req) {
			return
		}

		appt, err := svc.AnnotateNotes(r.Context(), actorFrom(r), id, req.Notes)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func recordPaymentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		appt, err := svc.RecordPayment(r.Context(), actorFrom(r), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func issuePrescriptionHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PrescriptionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		patientID, ok := parseUUID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}
		var apptID *uuid.UUID
		if req.AppointmentID != "" {
			id, ok := parseUUID(w, req.AppointmentID, "appointment_id")
			if !ok {
				return
			}
			apptID = &id
		}

		rx, err := svc.IssuePrescription(r.Context(), actorFrom(r), appointment.PrescriptionRequest{
			PatientID:     patientID,
			AppointmentID: apptID,
			Medication:    req.Medication,
			Instructions:  req.Instructions,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, rx)
	}
}

// appointmentEventsHandler exposes the audit trail to the parties and admins.
func appointmentEventsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		actor := actorFrom(r)
		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !actor.IsAdmin() && actor.UserID != appt.PatientID && actor.UserID != appt.DoctorID {
			writeError(w, http.StatusForbidden, "forbidden", "not a party to this appointment")
			return
		}

		logs, err := svc.Events(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toEventLogList(logs))
	}
}
