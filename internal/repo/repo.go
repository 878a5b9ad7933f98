package repo

import (
	"context"
	"errors"
	"time"

	"github.com/LeventeLantos/openhouse-followup/internal/model"
)

var ErrDuplicate = errors.New("duplicate record")

type EventRepository interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
}

type LeadRepository interface {
	CreateLead(ctx context.Context, l *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeadsByEvent(ctx context.Context, eventID string) ([]model.Lead, error)
	AppendLeadNote(ctx context.Context, id, entry string) (*model.Lead, error)
	UpdateLeadScore(ctx context.Context, id string, score model.Score) (*model.Lead, error)
}

type MessageRepository interface {
	// CreateBatch inserts all messages atomically. Messages whose
	// (lead, template, channel) already exists are skipped; the number of
	// new rows is returned.
	CreateBatch(ctx context.Context, msgs []model.ScheduledMessage) (int, error)
	// ClaimDue moves up to limit pending messages due at or before now to
	// processing, oldest send time first.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error)
	MarkSent(ctx context.Context, id, remoteMessageID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	// Release returns a claimed message to pending without sending it.
	Release(ctx context.Context, id string) error
	ListSent(ctx context.Context, limit, offset int) ([]model.ScheduledMessage, error)
	ListByLead(ctx context.Context, leadID string) ([]model.ScheduledMessage, error)
	CountByStatus(ctx context.Context, since time.Time) (model.MessageStats, error)
}

type Store interface {
	EventRepository
	LeadRepository
	MessageRepository
}

func appendNote(notes, entry string) string {
	if notes == "" {
		return entry
	}
	return notes + "\n\n" + entry
}

func addStat(s *model.MessageStats, status model.Status, n int) {
	switch status {
	case model.StatusPending:
		s.Pending += n
	case model.StatusProcessing:
		s.Processing += n
	case model.StatusSent:
		s.Sent += n
	case model.StatusFailed:
		s.Failed += n
	}
	s.Total += n
}
