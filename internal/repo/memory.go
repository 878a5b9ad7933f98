package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LeventeLantos/openhouse-followup/internal/model"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in process memory. It backs local runs
// without Postgres and the service tests.
type MemoryStore struct {
	mu       sync.Mutex
	events   map[string]model.Event
	leads    map[string]model.Lead
	messages map[string]model.ScheduledMessage
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[string]model.Event),
		leads:    make(map[string]model.Lead),
		messages: make(map[string]model.ScheduledMessage),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateEvent(ctx context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("event %s: %w", e.ID, ErrDuplicate)
	}
	for _, existing := range s.events {
		if existing.ShortCode == e.ShortCode {
			return fmt.Errorf("event short code %q: %w", e.ShortCode, ErrDuplicate)
		}
	}
	cp := *e
	cp.PropertyPhotos = append([]string(nil), e.PropertyPhotos...)
	s.events[e.ID] = cp
	return nil
}

func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, &model.NotFoundError{Entity: "event", ID: id}
	}
	e.PropertyPhotos = append([]string(nil), e.PropertyPhotos...)
	return &e, nil
}

func (s *MemoryStore) CreateLead(ctx context.Context, l *model.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[l.EventID]; !ok {
		return &model.NotFoundError{Entity: "event", ID: l.EventID}
	}
	if _, ok := s.leads[l.ID]; ok {
		return fmt.Errorf("lead %s: %w", l.ID, ErrDuplicate)
	}
	s.leads[l.ID] = *l
	return nil
}

func (s *MemoryStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return nil, &model.NotFoundError{Entity: "lead", ID: id}
	}
	return &l, nil
}

func (s *MemoryStore) ListLeadsByEvent(ctx context.Context, eventID string) ([]model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Lead
	for _, l := range s.leads {
		if l.EventID == eventID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendLeadNote(ctx context.Context, id, entry string) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return nil, &model.NotFoundError{Entity: "lead", ID: id}
	}
	l.Notes = appendNote(l.Notes, entry)
	l.UpdatedAt = s.now()
	s.leads[id] = l
	return &l, nil
}

func (s *MemoryStore) UpdateLeadScore(ctx context.Context, id string, score model.Score) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return nil, &model.NotFoundError{Entity: "lead", ID: id}
	}
	l.Score = score
	l.UpdatedAt = s.now()
	s.leads[id] = l
	return &l, nil
}

func (s *MemoryStore) CreateBatch(ctx context.Context, msgs []model.ScheduledMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		lead     string
		template model.Template
		channel  model.Channel
	}
	existing := make(map[key]bool, len(s.messages))
	for _, m := range s.messages {
		existing[key{m.LeadID, m.Template, m.Channel}] = true
	}

	var fresh []model.ScheduledMessage
	for _, m := range msgs {
		if _, ok := s.leads[m.LeadID]; !ok {
			return 0, &model.NotFoundError{Entity: "lead", ID: m.LeadID}
		}
		k := key{m.LeadID, m.Template, m.Channel}
		if existing[k] {
			continue
		}
		existing[k] = true
		fresh = append(fresh, m)
	}

	for _, m := range fresh {
		s.messages[m.ID] = m
	}
	return len(fresh), nil
}

func (s *MemoryStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.ScheduledMessage
	for _, m := range s.messages {
		if m.Status == model.StatusPending && !m.SendAt.After(now) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].SendAt.Equal(due[j].SendAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].SendAt.Before(due[j].SendAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimedAt := s.now()
	for i := range due {
		due[i].Status = model.StatusProcessing
		due[i].ClaimedAt = &claimedAt
		due[i].UpdatedAt = claimedAt
		s.messages[due[i].ID] = due[i]
	}
	return due, nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, id, remoteMessageID string, sentAt time.Time) error {
	return s.finish(id, func(m *model.ScheduledMessage) {
		m.Status = model.StatusSent
		m.SentAt = &sentAt
		m.RemoteMessageID = &remoteMessageID
	})
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id, reason string) error {
	return s.finish(id, func(m *model.ScheduledMessage) {
		m.Status = model.StatusFailed
		m.ErrorMessage = &reason
	})
}

func (s *MemoryStore) Release(ctx context.Context, id string) error {
	return s.finish(id, func(m *model.ScheduledMessage) {
		m.Status = model.StatusPending
		m.ClaimedAt = nil
	})
}

func (s *MemoryStore) finish(id string, apply func(m *model.ScheduledMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.Status != model.StatusProcessing {
		return fmt.Errorf("message %s is not in processing state", id)
	}
	apply(&m)
	m.UpdatedAt = s.now()
	s.messages[id] = m
	return nil
}

func (s *MemoryStore) ListSent(ctx context.Context, limit, offset int) ([]model.ScheduledMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var sent []model.ScheduledMessage
	for _, m := range s.messages {
		if m.Status == model.StatusSent {
			sent = append(sent, m)
		}
	}
	sort.Slice(sent, func(i, j int) bool { return sent[i].SentAt.After(*sent[j].SentAt) })

	if offset >= len(sent) {
		return nil, nil
	}
	sent = sent[offset:]
	if len(sent) > limit {
		sent = sent[:limit]
	}
	return sent, nil
}

func (s *MemoryStore) ListByLead(ctx context.Context, leadID string) ([]model.ScheduledMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ScheduledMessage
	for _, m := range s.messages {
		if m.LeadID == leadID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SendAt.Equal(out[j].SendAt) {
			return out[i].Channel > out[j].Channel
		}
		return out[i].SendAt.Before(out[j].SendAt)
	})
	return out, nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context, since time.Time) (model.MessageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats model.MessageStats
	for _, m := range s.messages {
		if m.CreatedAt.Before(since) {
			continue
		}
		addStat(&stats, m.Status, 1)
	}
	return stats, nil
}
