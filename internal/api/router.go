package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/careline/callcenter-booking/internal/booking"
	"github.com/careline/callcenter-booking/internal/directory"
	"github.com/careline/callcenter-booking/internal/identity"
	"github.com/careline/callcenter-booking/internal/lab"
)

type RouterConfig struct {
	Booking   *booking.Service
	Directory *directory.Service
	Identity  *identity.Service
	Lab       *lab.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Location  *time.Location
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	auth := NewAuthHandler(cfg.Identity)
	bookings := NewBookingHandler(cfg.Booking, cfg.Location)
	dir := NewDirectoryHandler(cfg.Directory)
	labs := NewLabHandler(cfg.Lab, cfg.Location)
	admin := NewAdminHandler(cfg.Identity)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", auth.Login)

		// Everything below requires a call-center session.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Identity))

			r.Get("/auth/me", auth.Me)
			r.Post("/auth/change-password", auth.ChangePassword)

			r.Get("/doctors", dir.SearchDoctors)
			r.Get("/doctors/{public_id}", dir.GetDoctor)
			r.Get("/hospitals", dir.ListHospitals)
			r.Get("/specializations", dir.ListSpecializations)
			r.Get("/illnesses", dir.ListIllnesses)
			r.Get("/schedules", dir.ListSchedules)

			r.Get("/availability", bookings.Availability)

			r.Get("/patients", bookings.ListPatients)
			r.Get("/patients/{nic}", bookings.GetPatient)

			r.Post("/appointments", bookings.Create)
			r.Post("/appointments/bulk", bookings.CreateBulk)
			r.Get("/appointments", bookings.List)
			r.Get("/appointments/{public_id}", bookings.Get)
			r.Delete("/appointments/{public_id}", bookings.Cancel)
			r.Post("/appointments/{public_id}/reschedule", bookings.Reschedule)
			r.Post("/appointments/{public_id}/confirm-payment", bookings.ConfirmPayment)

			r.Get("/labs", labs.ListLabs)
			r.Get("/lab-tests", labs.ListTests)
			r.Post("/lab-bookings", labs.CreateBooking)
			r.Get("/lab-bookings", labs.ListBookings)
			r.Get("/lab-bookings/{public_id}", labs.GetBooking)
			r.Patch("/lab-bookings/{public_id}/status", labs.UpdateBookingStatus)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(identity.RoleAdmin, identity.RoleSuperAdmin))

				r.Get("/dashboard", admin.Dashboard)
				r.Get("/users", admin.ListUsers)
				r.Post("/users", admin.CreateUser)
				r.Patch("/users/{id}", admin.UpdateUser)
				r.Delete("/users/{id}", admin.DeleteUser)
			})
		})
	})

	return r
}
