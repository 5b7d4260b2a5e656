package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/availability"
	"github.com/hackgods/telehealth-booking/internal/identity"
	"github.com/hackgods/telehealth-booking/internal/metrics"
	"github.com/hackgods/telehealth-booking/internal/notification"
)

type RouterConfig struct {
	Appointments  *appointment.Service
	Availability  *availability.Service
	Notifications *notification.Service
	Identity      *identity.Resolver

	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Limiter  *rate.Limiter

	Dependencies []Dependency
	Env          string
	Version      string

	// Now drives the upcoming/past/today views. Defaults to time.Now.
	Now func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.Identity, writeIdentityError))
		if cfg.Limiter != nil {
			r.Use(RateLimitMiddleware(cfg.Limiter))
		}

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", listDoctorsHandler(cfg.Appointments))
			r.Route("/{doctorID}", func(r chi.Router) {
				r.Get("/", getDoctorHandler(cfg.Appointments))
				r.Get("/slots", openSlotsHandler(cfg.Appointments))
				r.Get("/availability", getAvailabilityHandler(cfg.Availability))
				r.Put("/availability", setWeeklyHandler(cfg.Availability))
				r.Post("/availability/blocks", addBlockHandler(cfg.Availability))
				r.Delete("/availability/blocks/{blockID}", removeBlockHandler(cfg.Availability))
			})
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", bookAppointmentHandler(cfg.Appointments))
			r.Get("/", listAppointmentsHandler(cfg.Appointments, now))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getAppointmentHandler(cfg.Appointments))
				r.Get("/events", appointmentEventsHandler(cfg.Appointments))
				r.Post("/transition", transitionHandler(cfg.Appointments))
				r.Post("/confirm", fixedTransitionHandler(cfg.Appointments, appointment.StatusConfirmed))
				r.Post("/complete", fixedTransitionHandler(cfg.Appointments, appointment.StatusCompleted))
				r.Post("/cancel", fixedTransitionHandler(cfg.Appointments, appointment.StatusCancelled))
				r.Put("/notes", annotateNotesHandler(cfg.Appointments))
				r.Post("/payment", recordPaymentHandler(cfg.Appointments))
			})
		})

		r.Post("/prescriptions", issuePrescriptionHandler(cfg.Appointments))

		if cfg.Notifications != nil {
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", listNotificationsHandler(cfg.Notifications))
				r.Get("/unread-count", unreadCountHandler(cfg.Notifications))
				r.Post("/read-all", markAllReadHandler(cfg.Notifications))
				r.Post("/{id}/read", markReadHandler(cfg.Notifications))
				r.Delete("/{id}", deleteNotificationHandler(cfg.Notifications))
			})
		}
	})

	return r
}
