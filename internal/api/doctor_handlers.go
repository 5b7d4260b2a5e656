package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/availability"
)

func listDoctorsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		out := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			out = append(out, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getDoctorHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "doctorID"), "doctor_id")
		if !ok {
			return
		}

		d, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(d))
	}
}

func openSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "doctorID"), "doctor_id")
		if !ok {
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "date query parameter is required")
			return
		}

		slots, err := svc.OpenSlots(r.Context(), id, date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		normalized, _ := availability.NormalizeDate(date)
		writeJSON(w, http.StatusOK, SlotsResponse{DoctorID: id, Date: normalized, Slots: slots})
	}
}

func getAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "doctorID"), "doctor_id")
		if !ok {
			return
		}

		a, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(a))
	}
}

func setWeeklyHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "doctorID"), "doctor_id")
		if !ok {
			return
		}
		var req WeeklyRequest
		if !decodeBody(w, r, &req) {
			return
		}

		a, err := svc.SetWeekly(r.Context(), actorFrom(r), id, availability.Weekly(req.Weekly))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(a))
	}
}

func addBlockHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "doctorID"), "doctor_id")
		if !ok {
			return
		}
		var req BlockRequest
		if !decodeBody(w, r, &req) {
			return
		}

		a, err := svc.AddBlock(r.Context(), actorFrom(r), id, availability.Block{
			Date:      req.Date,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Reason:    req.Reason,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAvailabilityResponse(a))
	}
}

func removeBlockHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "doctorID"), "doctor_id")
		if !ok {
			return
		}
		blockID, ok := parseUUID(w, chi.URLParam(r, "blockID"), "block_id")
		if !ok {
			return
		}

		a, err := svc.RemoveBlock(r.Context(), actorFrom(r), id, blockID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(a))
	}
}
