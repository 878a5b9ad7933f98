package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/LeventeLantos/openhouse-followup/internal/metrics"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/v1/health", h.Health)

	r.Get("/v1/scheduler/status", h.SchedulerStatus)
	r.Post("/v1/scheduler/start", h.SchedulerStart)
	r.Post("/v1/scheduler/stop", h.SchedulerStop)

	r.Get("/v1/messages/sent", h.ListSentMessages)
	r.Get("/v1/messages/{id}/receipt", h.MessageReceipt)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cron/send-messages", h.SendScheduledMessages)
		r.Post("/cron/send-messages", h.SendScheduledMessages)

		r.Post("/leads", h.CreateLead)
		r.Post("/leads/{id}/notes", h.AddLeadNote)
		r.Post("/leads/{id}/convert", h.ConvertLead)
		r.Patch("/leads/{id}/status", h.UpdateLeadStatus)
		r.Get("/leads/{id}/messages", h.LeadMessages)

		r.Post("/events", h.CreateEvent)
		r.Get("/events/{id}", h.GetEvent)
		r.Post("/events/{id}/broadcast", h.BroadcastToEvent)

		r.Get("/analytics/messages", h.MessageAnalytics)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("openhouse-followup"))
	})

	return r
}
