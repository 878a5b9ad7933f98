package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LeventeLantos/openhouse-followup/internal/leads"
	"github.com/LeventeLantos/openhouse-followup/internal/model"
)

func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var in leads.CreateLeadInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	lead, err := h.leads.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "lead": lead})
}

func (h *Handler) AddLeadNote(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Note string `json:"note"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	lead, err := h.leads.AddNote(r.Context(), chi.URLParam(r, "id"), in.Note)
	writeLead(w, lead, err)
}

func (h *Handler) ConvertLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leads.MarkConverted(r.Context(), chi.URLParam(r, "id"))
	writeLead(w, lead, err)
}

func (h *Handler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	lead, err := h.leads.UpdateScore(r.Context(), chi.URLParam(r, "id"), in.Status)
	writeLead(w, lead, err)
}

func (h *Handler) LeadMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.leads.Messages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []model.ScheduledMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in leads.CreateEventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	event, err := h.leads.CreateEvent(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "event": event})
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.leads.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": event})
}

func (h *Handler) BroadcastToEvent(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Message     string `json:"message"`
		MessageType string `json:"messageType"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.leads.Broadcast(r.Context(), chi.URLParam(r, "id"), in.Message, in.MessageType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": res,
		"message": "Broadcast sent successfully",
	})
}

// MessageAnalytics counts scheduled messages created in the last `days`
// days (default 30).
func (h *Handler) MessageAnalytics(w http.ResponseWriter, r *http.Request) {
	days := parseInt(r.URL.Query().Get("days"), 30)
	if days <= 0 {
		days = 30
	}

	since := h.now().Add(-time.Duration(days) * 24 * time.Hour)
	stats, err := h.leads.MessageStats(r.Context(), since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "days": days, "stats": stats})
}

func writeLead(w http.ResponseWriter, lead *model.Lead, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "lead": lead})
}
