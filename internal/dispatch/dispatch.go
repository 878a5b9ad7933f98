// Package dispatch drains due scheduled messages through the messaging
// channels.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/openhouse-followup/internal/cache"
	"github.com/LeventeLantos/openhouse-followup/internal/client"
	"github.com/LeventeLantos/openhouse-followup/internal/content"
	"github.com/LeventeLantos/openhouse-followup/internal/metrics"
	"github.com/LeventeLantos/openhouse-followup/internal/model"
	"github.com/LeventeLantos/openhouse-followup/internal/repo"
)

const DefaultLimit = 50

type Failure struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

type Result struct {
	Processed  int       `json:"processed"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Released   int       `json:"released"`
	Failures   []Failure `json:"failures,omitempty"`
}

type Option func(d *Dispatcher)

func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithContentMax(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.contentMax = n
		}
	}
}

func WithCache(c cache.MessageCache) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.cache = c
		}
	}
}

type Dispatcher struct {
	messages repo.MessageRepository
	leads    repo.LeadRepository
	events   repo.EventRepository
	gen      *content.Generator
	sms      client.SMSSender
	email    client.EmailSender
	cache    cache.MessageCache

	concurrency int
	contentMax  int
	now         func() time.Time
}

func New(
	messages repo.MessageRepository,
	leads repo.LeadRepository,
	events repo.EventRepository,
	gen *content.Generator,
	sms client.SMSSender,
	email client.EmailSender,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		messages:    messages,
		leads:       leads,
		events:      events,
		gen:         gen,
		sms:         sms,
		email:       email,
		cache:       cache.Noop{},
		concurrency: 10,
		contentMax:  1600,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProcessDueMessages claims up to limit pending messages due at now and
// sends them concurrently. Each message settles on its own; the returned
// error only reports a failed claim. Once ctx is done, claimed messages
// whose send has not started go back to pending; sends already started
// run to completion.
func (d *Dispatcher) ProcessDueMessages(ctx context.Context, now time.Time, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	msgs, err := d.messages.ClaimDue(ctx, now, limit)
	if err != nil {
		return Result{}, fmt.Errorf("claim due messages: %w", err)
	}

	var (
		mu  sync.Mutex
		res = Result{Processed: len(msgs)}
	)

	// Sends in flight and status updates must outlive the trigger's
	// context, otherwise claimed rows stay in processing.
	settleCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, m := range msgs {
		g.Go(func() error {
			if ctx.Err() != nil {
				if err := d.messages.Release(settleCtx, m.ID); err != nil {
					slog.Error("release message", "message_id", m.ID, "error", err)
				}
				mu.Lock()
				res.Released++
				mu.Unlock()
				return nil
			}

			remoteID, sendErr := d.send(settleCtx, m)
			metrics.RecordDispatched(string(m.Channel), sendErr)

			if sendErr != nil {
				slog.Error("scheduled message failed",
					"message_id", m.ID, "channel", m.Channel, "template", m.Template, "error", sendErr)
				if err := d.messages.MarkFailed(settleCtx, m.ID, sendErr.Error()); err != nil {
					slog.Error("mark message failed", "message_id", m.ID, "error", err)
				}

				mu.Lock()
				res.Failed++
				res.Failures = append(res.Failures, Failure{MessageID: m.ID, Error: sendErr.Error()})
				mu.Unlock()
				return nil
			}

			sentAt := d.now()
			if err := d.messages.MarkSent(settleCtx, m.ID, remoteID, sentAt); err != nil {
				slog.Error("mark message sent", "message_id", m.ID, "error", err)
			}
			if err := d.cache.StoreSent(settleCtx, cache.SentRecord{
				MessageID:       m.ID,
				Channel:         string(m.Channel),
				RemoteMessageID: remoteID,
				SentAt:          sentAt,
			}); err != nil {
				slog.Warn("cache sent message", "message_id", m.ID, "error", err)
			}

			mu.Lock()
			res.Successful++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if res.Processed > 0 {
		slog.Info("dispatch completed",
			"processed", res.Processed, "successful", res.Successful, "failed", res.Failed, "released", res.Released)
	}
	return res, nil
}

func (d *Dispatcher) send(ctx context.Context, m model.ScheduledMessage) (string, error) {
	switch m.Channel {
	case model.ChannelSMS:
		return d.sendSMS(ctx, m)
	case model.ChannelEmail:
		return d.sendEmail(ctx, m)
	}
	return "", fmt.Errorf("unknown channel %q", m.Channel)
}

func (d *Dispatcher) sendSMS(ctx context.Context, m model.ScheduledMessage) (string, error) {
	to := m.Recipient()
	if to == "" {
		return "", errors.New("missing recipient phone")
	}
	if utf8.RuneCountInString(m.Content) > d.contentMax {
		return "", fmt.Errorf("content exceeds %d chars", d.contentMax)
	}

	e164, err := client.NormalizeE164(to)
	if err != nil {
		return "", err
	}

	remoteID, err := d.sms.SendSMS(ctx, e164, m.Content)
	if err != nil {
		return "", model.NewChannelSendError(model.ChannelSMS, err)
	}
	return remoteID, nil
}

// sendEmail renders the body from current lead and event data.
func (d *Dispatcher) sendEmail(ctx context.Context, m model.ScheduledMessage) (string, error) {
	to := m.Recipient()
	if to == "" {
		return "", errors.New("missing recipient email")
	}

	lead, err := d.leads.GetLead(ctx, m.LeadID)
	if err != nil {
		return "", err
	}
	event, err := d.events.GetEvent(ctx, m.EventID)
	if err != nil {
		return "", err
	}

	email, err := d.gen.Email(m.Template, d.gen.EmailDataFor(m.Template, *lead, *event))
	if err != nil {
		return "", err
	}

	remoteID, err := d.email.SendEmail(ctx, to, email.Subject, email.HTML)
	if err != nil {
		return "", model.NewChannelSendError(model.ChannelEmail, err)
	}
	return remoteID, nil
}
