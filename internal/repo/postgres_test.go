package repo

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeventeLantos/openhouse-followup/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	db, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db), "migrate must be idempotent")
	return db
}

func TestPostgres_EndToEnd(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	events := NewPostgresEventRepo(db)
	leads := NewPostgresLeadRepo(db)
	msgs := NewPostgresMessageRepo(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	ev := &model.Event{
		ID: uuid.NewString(), ShortCode: uuid.NewString()[:8], PropertyAddress: "1 Main St",
		PropertyPhotos: []string{"https://img/1.jpg"}, AgentName: "Sam", EventDate: now, CreatedAt: now,
	}
	require.NoError(t, events.CreateEvent(ctx, ev))
	assert.True(t, errors.Is(events.CreateEvent(ctx, &model.Event{ID: uuid.NewString(), ShortCode: ev.ShortCode, EventDate: now, CreatedAt: now}), ErrDuplicate))

	gotEv, err := events.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.PropertyPhotos, gotEv.PropertyPhotos)

	lead := &model.Lead{
		ID: uuid.NewString(), EventID: ev.ID, FirstName: "Dana", LastName: "R", Email: "d@example.com",
		Phone: "5551234567", PreApproved: model.PreApprovedYes, Timeline: model.Timeline0to30Days,
		Score: model.ScoreHot, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, leads.CreateLead(ctx, lead))

	l, err := leads.AppendLeadNote(ctx, lead.ID, "a")
	require.NoError(t, err)
	l, err = leads.AppendLeadNote(ctx, lead.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb", l.Notes)

	_, err = leads.GetLead(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, model.ErrNotFound))

	phone := "+15551234567"
	batch := []model.ScheduledMessage{{
		ID: uuid.NewString(), LeadID: lead.ID, EventID: ev.ID, Channel: model.ChannelSMS,
		Template: model.TemplateFollowUp1h, Content: "hi", RecipientPhone: &phone,
		SendAt: now.Add(-time.Minute), Status: model.StatusPending, CreatedAt: now, UpdatedAt: now,
	}}
	n, err := msgs.CreateBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	batch[0].ID = uuid.NewString()
	n, err = msgs.CreateBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	claimed, err := msgs.ClaimDue(ctx, now, 100)
	require.NoError(t, err)
	var found bool
	for _, m := range claimed {
		if m.LeadID == lead.ID {
			found = true
			require.NoError(t, msgs.Release(ctx, m.ID))
			require.Error(t, msgs.Release(ctx, m.ID))
		}
	}
	assert.True(t, found)

	claimed, err = msgs.ClaimDue(ctx, now, 100)
	require.NoError(t, err)
	found = false
	for _, m := range claimed {
		if m.LeadID == lead.ID {
			found = true
			require.NoError(t, msgs.MarkSent(ctx, m.ID, "remote-1", now))
		}
	}
	assert.True(t, found)

	list, err := msgs.ListByLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusSent, list[0].Status)
	assert.Equal(t, "remote-1", *list[0].RemoteMessageID)
}
