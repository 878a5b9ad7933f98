// Package followup schedules the post-visit message sequence for a lead and
// sends the immediate welcome pair.
package followup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/openhouse-followup/internal/client"
	"github.com/LeventeLantos/openhouse-followup/internal/content"
	"github.com/LeventeLantos/openhouse-followup/internal/metrics"
	"github.com/LeventeLantos/openhouse-followup/internal/model"
	"github.com/LeventeLantos/openhouse-followup/internal/repo"
)

type Step struct {
	Offset   time.Duration
	Template model.Template
}

// Sequence is measured from the lead's creation time. Each step is sent
// on both channels.
var Sequence = []Step{
	{Offset: time.Hour, Template: model.TemplateFollowUp1h},
	{Offset: 24 * time.Hour, Template: model.TemplateFollowUp24h},
	{Offset: 3 * 24 * time.Hour, Template: model.TemplateSimilarProperties},
	{Offset: 7 * 24 * time.Hour, Template: model.TemplateMarketUpdate},
}

type Service struct {
	leads    repo.LeadRepository
	events   repo.EventRepository
	messages repo.MessageRepository
	gen      *content.Generator
	sms      client.SMSSender
	email    client.EmailSender

	now   func() time.Time
	newID func() string
}

func NewService(
	leads repo.LeadRepository,
	events repo.EventRepository,
	messages repo.MessageRepository,
	gen *content.Generator,
	sms client.SMSSender,
	email client.EmailSender,
) *Service {
	return &Service{
		leads:    leads,
		events:   events,
		messages: messages,
		gen:      gen,
		sms:      sms,
		email:    email,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *Service) load(ctx context.Context, leadID, eventID string) (*model.Lead, *model.Event, error) {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, nil, err
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if lead.EventID != eventID {
		return nil, nil, fmt.Errorf("lead %s belongs to event %s, not %s", leadID, lead.EventID, eventID)
	}
	return lead, event, nil
}

// BuildSequence renders the scheduled records for lead without persisting
// them. SMS content is final; email records carry the subject and a
// placeholder body.
func (s *Service) BuildSequence(lead model.Lead, event model.Event) ([]model.ScheduledMessage, error) {
	base := lead.CreatedAt
	created := s.now()

	out := make([]model.ScheduledMessage, 0, 2*len(Sequence))
	for _, step := range Sequence {
		sendAt := base.Add(step.Offset)

		body, err := s.gen.SMS(step.Template, lead, event)
		if err != nil {
			return nil, err
		}
		phone := lead.Phone
		out = append(out, model.ScheduledMessage{
			ID:             s.newID(),
			LeadID:         lead.ID,
			EventID:        event.ID,
			Channel:        model.ChannelSMS,
			Template:       step.Template,
			Content:        body,
			RecipientPhone: &phone,
			SendAt:         sendAt,
			Status:         model.StatusPending,
			CreatedAt:      created,
			UpdatedAt:      created,
		})

		subject, err := content.Subject(step.Template, event.PropertyAddress)
		if err != nil {
			return nil, err
		}
		email := lead.Email
		out = append(out, model.ScheduledMessage{
			ID:             s.newID(),
			LeadID:         lead.ID,
			EventID:        event.ID,
			Channel:        model.ChannelEmail,
			Template:       step.Template,
			Subject:        &subject,
			Content:        content.PlaceholderContent(step.Template),
			RecipientEmail: &email,
			SendAt:         sendAt,
			Status:         model.StatusPending,
			CreatedAt:      created,
			UpdatedAt:      created,
		})
	}
	return out, nil
}

// ScheduleFollowUpSequence persists the full sequence in one batch. Running
// it again for the same lead inserts nothing.
func (s *Service) ScheduleFollowUpSequence(ctx context.Context, leadID, eventID string) ([]model.ScheduledMessage, error) {
	lead, event, err := s.load(ctx, leadID, eventID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.BuildSequence(*lead, *event)
	if err != nil {
		return nil, err
	}

	inserted, err := s.messages.CreateBatch(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("schedule follow-ups for lead %s: %w", leadID, err)
	}

	if inserted < len(msgs) {
		slog.Info("follow-up sequence already scheduled", "lead_id", leadID, "inserted", inserted, "skipped", len(msgs)-inserted)
		stored, err := s.messages.ListByLead(ctx, leadID)
		if err != nil {
			return nil, fmt.Errorf("list follow-ups for lead %s: %w", leadID, err)
		}
		return stored, nil
	}

	metrics.RecordScheduled(string(model.ChannelSMS), len(Sequence))
	metrics.RecordScheduled(string(model.ChannelEmail), len(Sequence))
	slog.Info("follow-up sequence scheduled", "lead_id", leadID, "event_id", eventID, "messages", inserted)
	return msgs, nil
}

// SendWelcomeMessages sends the welcome SMS and email right away. Only a
// missing lead or event is returned; send failures are logged.
func (s *Service) SendWelcomeMessages(ctx context.Context, leadID, eventID string) error {
	lead, event, err := s.load(ctx, leadID, eventID)
	if err != nil {
		return err
	}

	smsErr := s.sendWelcomeSMS(ctx, *lead, *event)
	metrics.RecordWelcome(string(model.ChannelSMS), smsErr)
	if smsErr != nil {
		slog.Error("welcome sms failed", "lead_id", leadID, "error", smsErr)
	}

	emailErr := s.sendWelcomeEmail(ctx, *lead, *event)
	metrics.RecordWelcome(string(model.ChannelEmail), emailErr)
	if emailErr != nil {
		slog.Error("welcome email failed", "lead_id", leadID, "error", emailErr)
	}

	return nil
}

func (s *Service) sendWelcomeSMS(ctx context.Context, lead model.Lead, event model.Event) error {
	body, err := s.gen.SMS(model.TemplateWelcome, lead, event)
	if err != nil {
		return err
	}
	to, err := client.NormalizeE164(lead.Phone)
	if err != nil {
		return err
	}
	remoteID, err := s.sms.SendSMS(ctx, to, body)
	if err != nil {
		return model.NewChannelSendError(model.ChannelSMS, err)
	}
	slog.Info("welcome sms sent", "lead_id", lead.ID, "remote_id", remoteID)
	return nil
}

func (s *Service) sendWelcomeEmail(ctx context.Context, lead model.Lead, event model.Event) error {
	msg, err := s.gen.Email(model.TemplateWelcome, s.gen.EmailDataFor(model.TemplateWelcome, lead, event))
	if err != nil {
		return err
	}
	remoteID, err := s.email.SendEmail(ctx, lead.Email, msg.Subject, msg.HTML)
	if err != nil {
		return model.NewChannelSendError(model.ChannelEmail, err)
	}
	slog.Info("welcome email sent", "lead_id", lead.ID, "remote_id", remoteID)
	return nil
}
