// Package leads handles lead capture at the open house and the agent's
// follow-up actions from the dashboard.
package leads

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/openhouse-followup/internal/client"
	"github.com/LeventeLantos/openhouse-followup/internal/content"
	"github.com/LeventeLantos/openhouse-followup/internal/followup"
	"github.com/LeventeLantos/openhouse-followup/internal/metrics"
	"github.com/LeventeLantos/openhouse-followup/internal/model"
	"github.com/LeventeLantos/openhouse-followup/internal/notify"
	"github.com/LeventeLantos/openhouse-followup/internal/repo"
	"github.com/LeventeLantos/openhouse-followup/internal/scoring"
	"github.com/LeventeLantos/openhouse-followup/internal/worker"
)

const (
	BroadcastSMS   = "sms"
	BroadcastEmail = "email"
	BroadcastBoth  = "both"
)

// Submitter runs named tasks off the request path.
type Submitter interface {
	Submit(name string, fn worker.Task) error
}

type CreateLeadInput struct {
	EventID      string `json:"eventId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PreApproved  string `json:"preApproved"`
	HasAgent     bool   `json:"hasAgent"`
	Timeline     string `json:"timeline"`
	InterestedIn string `json:"interestedIn"`
}

type CreateEventInput struct {
	ShortCode       string    `json:"shortCode"`
	PropertyAddress string    `json:"propertyAddress"`
	PropertyPhotos  []string  `json:"propertyPhotos"`
	Price           int64     `json:"price"`
	Bedrooms        int       `json:"bedrooms"`
	Bathrooms       float64   `json:"bathrooms"`
	SquareFeet      int       `json:"squareFeet"`
	AgentName       string    `json:"agentName"`
	AgentPhoto      string    `json:"agentPhoto"`
	AgentBrokerage  string    `json:"agentBrokerage"`
	AgentEmail      string    `json:"agentEmail"`
	AgentPhone      string    `json:"agentPhone"`
	EventDate       time.Time `json:"eventDate"`
}

type Tally struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type BroadcastResult struct {
	SMS   Tally `json:"sms"`
	Email Tally `json:"email"`
}

type Deps struct {
	Events   repo.EventRepository
	Leads    repo.LeadRepository
	Messages repo.MessageRepository
	FollowUp *followup.Service
	Content  *content.Generator
	SMS      client.SMSSender
	Email    client.EmailSender
	Notifier notify.Notifier
	Tasks    Submitter
}

type Service struct {
	events   repo.EventRepository
	leads    repo.LeadRepository
	messages repo.MessageRepository
	followup *followup.Service
	gen      *content.Generator
	sms      client.SMSSender
	email    client.EmailSender
	notifier notify.Notifier
	tasks    Submitter

	now   func() time.Time
	newID func() string
}

func NewService(d Deps) *Service {
	n := d.Notifier
	if n == nil {
		n = notify.Noop{}
	}
	return &Service{
		events:   d.Events,
		leads:    d.Leads,
		messages: d.Messages,
		followup: d.FollowUp,
		gen:      d.Content,
		sms:      d.SMS,
		email:    d.Email,
		notifier: n,
		tasks:    d.Tasks,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Create scores and stores a lead, then hands the dashboard notification,
// the welcome pair and the follow-up scheduling to the background. The
// three tasks succeed or fail independently and never fail the intake.
func (s *Service) Create(ctx context.Context, in CreateLeadInput) (*model.Lead, error) {
	pa, tl, err := validateLead(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.events.GetEvent(ctx, in.EventID); err != nil {
		return nil, err
	}

	now := s.now()
	lead := &model.Lead{
		ID:           s.newID(),
		EventID:      in.EventID,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		PreApproved:  pa,
		HasAgent:     in.HasAgent,
		Timeline:     tl,
		InterestedIn: strings.TrimSpace(in.InterestedIn),
		Score:        scoring.Score(pa, in.HasAgent, tl),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.leads.CreateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}

	metrics.RecordLeadCreated(string(lead.Score))
	slog.Info("lead captured", "lead_id", lead.ID, "event_id", lead.EventID, "score", lead.Score)

	snapshot := *lead
	s.submit("notify-new-lead", func(ctx context.Context) error {
		return s.notifier.Publish(ctx, notify.EventChannel(snapshot.EventID), notify.EventNewLead, map[string]any{
			"lead":      snapshot,
			"timestamp": now.Format(time.RFC3339),
		})
	})
	s.submit("welcome-messages", func(ctx context.Context) error {
		return s.followup.SendWelcomeMessages(ctx, snapshot.ID, snapshot.EventID)
	})
	s.submit("schedule-followups", func(ctx context.Context) error {
		_, err := s.followup.ScheduleFollowUpSequence(ctx, snapshot.ID, snapshot.EventID)
		return err
	})

	return lead, nil
}

// AddNote appends a timestamped note to the lead.
func (s *Service) AddNote(ctx context.Context, leadID, note string) (*model.Lead, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		var verrs model.ValidationErrors
		verrs.Add("note", "is required")
		return nil, verrs.Err()
	}
	entry := fmt.Sprintf("[%s] %s", s.now().Format(time.RFC1123), note)
	return s.leads.AppendLeadNote(ctx, leadID, entry)
}

func (s *Service) MarkConverted(ctx context.Context, leadID string) (*model.Lead, error) {
	entry := "[CONVERTED] Lead marked as converted on " + s.now().Format(time.RFC1123)
	lead, err := s.leads.AppendLeadNote(ctx, leadID, entry)
	if err != nil {
		return nil, err
	}
	slog.Info("lead converted", "lead_id", leadID)
	return lead, nil
}

// UpdateScore lets the agent override the computed score.
func (s *Service) UpdateScore(ctx context.Context, leadID, score string) (*model.Lead, error) {
	sc, err := model.ParseScore(strings.TrimSpace(score))
	if err != nil {
		var verrs model.ValidationErrors
		verrs.Add("status", "must be one of HOT, WARM, COLD")
		return nil, verrs.Err()
	}

	lead, err := s.leads.UpdateLeadScore(ctx, leadID, sc)
	if err != nil {
		return nil, err
	}

	snapshot := *lead
	s.submit("notify-lead-updated", func(ctx context.Context) error {
		return s.notifier.Publish(ctx, notify.EventChannel(snapshot.EventID), notify.EventLeadUpdated, map[string]any{
			"lead":      snapshot,
			"timestamp": s.now().Format(time.RFC3339),
		})
	})
	return lead, nil
}

// Broadcast sends msg to every lead of the event on the requested
// channels. A failed recipient is counted and logged; the rest still go
// out.
func (s *Service) Broadcast(ctx context.Context, eventID, msg, kind string) (BroadcastResult, error) {
	var res BroadcastResult

	msg = strings.TrimSpace(msg)
	var verrs model.ValidationErrors
	if msg == "" {
		verrs.Add("message", "is required")
	}
	switch kind {
	case BroadcastSMS, BroadcastEmail, BroadcastBoth:
	case "":
		verrs.Add("messageType", "is required")
	default:
		verrs.Add("messageType", "must be one of sms, email, both")
	}
	if err := verrs.Err(); err != nil {
		return res, err
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return res, err
	}
	leads, err := s.leads.ListLeadsByEvent(ctx, eventID)
	if err != nil {
		return res, fmt.Errorf("list leads for event %s: %w", eventID, err)
	}

	for _, lead := range leads {
		if kind == BroadcastSMS || kind == BroadcastBoth {
			if err := s.broadcastSMS(ctx, lead, msg); err != nil {
				res.SMS.Failed++
				slog.Error("broadcast sms failed", "lead_id", lead.ID, "event_id", eventID, "error", err)
			} else {
				res.SMS.Sent++
			}
		}
		if kind == BroadcastEmail || kind == BroadcastBoth {
			if err := s.broadcastEmail(ctx, lead, *event, msg); err != nil {
				res.Email.Failed++
				slog.Error("broadcast email failed", "lead_id", lead.ID, "event_id", eventID, "error", err)
			} else {
				res.Email.Sent++
			}
		}
	}

	slog.Info("broadcast sent", "event_id", eventID, "leads", len(leads),
		"sms_sent", res.SMS.Sent, "sms_failed", res.SMS.Failed,
		"email_sent", res.Email.Sent, "email_failed", res.Email.Failed)
	return res, nil
}

func (s *Service) broadcastSMS(ctx context.Context, lead model.Lead, msg string) error {
	to, err := client.NormalizeE164(lead.Phone)
	if err != nil {
		return err
	}
	if _, err := s.sms.SendSMS(ctx, to, msg); err != nil {
		return model.NewChannelSendError(model.ChannelSMS, err)
	}
	return nil
}

func (s *Service) broadcastEmail(ctx context.Context, lead model.Lead, event model.Event, msg string) error {
	email, err := s.gen.BroadcastEmail(lead, event, msg)
	if err != nil {
		return err
	}
	if _, err := s.email.SendEmail(ctx, lead.Email, email.Subject, email.HTML); err != nil {
		return model.NewChannelSendError(model.ChannelEmail, err)
	}
	return nil
}

func (s *Service) Messages(ctx context.Context, leadID string) ([]model.ScheduledMessage, error) {
	if _, err := s.leads.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	return s.messages.ListByLead(ctx, leadID)
}

func (s *Service) MessageStats(ctx context.Context, since time.Time) (model.MessageStats, error) {
	return s.messages.CountByStatus(ctx, since)
}

func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (*model.Event, error) {
	if err := validateEvent(in); err != nil {
		return nil, err
	}

	now := s.now()
	event := &model.Event{
		ID:              s.newID(),
		ShortCode:       strings.TrimSpace(in.ShortCode),
		PropertyAddress: strings.TrimSpace(in.PropertyAddress),
		PropertyPhotos:  in.PropertyPhotos,
		Price:           in.Price,
		Bedrooms:        in.Bedrooms,
		Bathrooms:       in.Bathrooms,
		SquareFeet:      in.SquareFeet,
		AgentName:       strings.TrimSpace(in.AgentName),
		AgentPhoto:      in.AgentPhoto,
		AgentBrokerage:  in.AgentBrokerage,
		AgentEmail:      strings.TrimSpace(in.AgentEmail),
		AgentPhone:      in.AgentPhone,
		EventDate:       in.EventDate,
		CreatedAt:       now,
	}
	if event.ShortCode == "" {
		event.ShortCode = shortCode()
	}
	if event.EventDate.IsZero() {
		event.EventDate = now
	}
	if event.PropertyPhotos == nil {
		event.PropertyPhotos = []string{}
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	slog.Info("open house created", "event_id", event.ID, "short_code", event.ShortCode)
	return event, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.events.GetEvent(ctx, id)
}

func (s *Service) submit(name string, fn worker.Task) {
	if err := s.tasks.Submit(name, fn); err != nil {
		slog.Warn("background task not queued", "task", name, "error", err)
	}
}

func shortCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func validateLead(in CreateLeadInput) (model.PreApproval, model.Timeline, error) {
	var verrs model.ValidationErrors

	if strings.TrimSpace(in.EventID) == "" {
		verrs.Add("eventId", "is required")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		verrs.Add("firstName", "is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		verrs.Add("lastName", "is required")
	}

	if strings.TrimSpace(in.Email) == "" {
		verrs.Add("email", "is required")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		verrs.Add("email", "is invalid")
	}

	if strings.TrimSpace(in.Phone) == "" {
		verrs.Add("phone", "is required")
	} else if n := countDigits(in.Phone); n < 10 || n > 15 {
		verrs.Add("phone", "must be a valid phone number")
	}

	pa, err := model.ParsePreApproval(in.PreApproved)
	if err != nil {
		verrs.Add("preApproved", "must be one of yes, no, not-sure")
	}
	tl, err := model.ParseTimeline(in.Timeline)
	if err != nil {
		verrs.Add("timeline", "must be one of 0-30 days, 1-3 months, 3-6 months, 6+ months")
	}

	return pa, tl, verrs.Err()
}

func validateEvent(in CreateEventInput) error {
	var verrs model.ValidationErrors

	if strings.TrimSpace(in.PropertyAddress) == "" {
		verrs.Add("propertyAddress", "is required")
	}
	if strings.TrimSpace(in.AgentName) == "" {
		verrs.Add("agentName", "is required")
	}
	if in.AgentEmail != "" {
		if _, err := mail.ParseAddress(in.AgentEmail); err != nil {
			verrs.Add("agentEmail", "is invalid")
		}
	}
	if in.Price < 0 {
		verrs.Add("price", "must not be negative")
	}
	if in.Bedrooms < 0 || in.Bathrooms < 0 || in.SquareFeet < 0 {
		verrs.Add("property", "room counts and square feet must not be negative")
	}
	return verrs.Err()
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
