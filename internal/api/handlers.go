package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LeventeLantos/openhouse-followup/internal/cache"
	"github.com/LeventeLantos/openhouse-followup/internal/cron"
	"github.com/LeventeLantos/openhouse-followup/internal/dispatch"
	"github.com/LeventeLantos/openhouse-followup/internal/leads"
	"github.com/LeventeLantos/openhouse-followup/internal/model"
	"github.com/LeventeLantos/openhouse-followup/internal/repo"
)

const maxBodyBytes = 1 << 20

type Scheduler interface {
	Start() bool
	Stop() bool
	IsRunning() bool
	Status() cron.Status
}

type Dispatcher interface {
	ProcessDueMessages(ctx context.Context, now time.Time, limit int) (dispatch.Result, error)
}

type Leads interface {
	Create(ctx context.Context, in leads.CreateLeadInput) (*model.Lead, error)
	AddNote(ctx context.Context, leadID, note string) (*model.Lead, error)
	MarkConverted(ctx context.Context, leadID string) (*model.Lead, error)
	UpdateScore(ctx context.Context, leadID, score string) (*model.Lead, error)
	Broadcast(ctx context.Context, eventID, msg, kind string) (leads.BroadcastResult, error)
	Messages(ctx context.Context, leadID string) ([]model.ScheduledMessage, error)
	MessageStats(ctx context.Context, since time.Time) (model.MessageStats, error)
	CreateEvent(ctx context.Context, in leads.CreateEventInput) (*model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
}

type Deps struct {
	Scheduler  Scheduler
	Dispatcher Dispatcher
	Messages   repo.MessageRepository
	Leads      Leads
	Receipts   cache.MessageCache
	CronSecret string
	BatchSize  int
}

type Handler struct {
	sched      Scheduler
	dispatcher Dispatcher
	messages   repo.MessageRepository
	leads      Leads
	receipts   cache.MessageCache
	cronSecret string
	batchSize  int
	now        func() time.Time
}

func NewHandler(d Deps) *Handler {
	receipts := d.Receipts
	if receipts == nil {
		receipts = cache.Noop{}
	}
	return &Handler{
		sched:      d.Scheduler,
		dispatcher: d.Dispatcher,
		messages:   d.Messages,
		leads:      d.Leads,
		receipts:   receipts,
		cronSecret: d.CronSecret,
		batchSize:  d.BatchSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) ListSentMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.messages.ListSent(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.ScheduledMessage{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) MessageReceipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, ok, err := h.receipts.LookupSent(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, &model.NotFoundError{Entity: "receipt", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "receipt": rec})
}

// SendScheduledMessages is the periodic trigger. When a cron secret is
// configured the caller must present it as a bearer token.
func (h *Handler) SendScheduledMessages(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, model.ErrUnauthorized)
		return
	}

	res, err := h.dispatcher.ProcessDueMessages(r.Context(), h.now(), h.batchSize)
	if err != nil {
		slog.Error("scheduled message run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Failed to process scheduled messages",
			"details": err.Error(),
		})
		return
	}

	if res.Processed == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"message":   "No messages to send",
			"processed": 0,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    fmt.Sprintf("Processed %d messages", res.Processed),
		"processed":  res.Processed,
		"successful": res.Successful,
		"failed":     res.Failed,
		"released":   res.Released,
	})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.cronSecret == "" {
		return true
	}
	want := "Bearer " + h.cronSecret
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var verrs model.ValidationErrors
		verrs.Add("body", "must be a valid JSON object")
		return verrs
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{"success": false, "error": err.Error()}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
		body["error"] = "validation failed"
		var verrs model.ValidationErrors
		if errors.As(err, &verrs) {
			body["details"] = verrs
		}
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		body["error"] = "Unauthorized"
	case errors.Is(err, repo.ErrDuplicate):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, body)
}
