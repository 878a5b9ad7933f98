package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/openhouse-followup/internal/model"
)

const messageColumns = `id, lead_id, event_id, channel, template, subject, content,
	recipient_phone, recipient_email, send_at, status, sent_at, error_message,
	remote_message_id, claimed_at, created_at, updated_at`

type PostgresMessageRepo struct {
	db *sql.DB
}

func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

func (r *PostgresMessageRepo) CreateBatch(ctx context.Context, msgs []model.ScheduledMessage) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, m := range msgs {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO scheduled_messages (`+messageColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (lead_id, template, channel) DO NOTHING
		`, m.ID, m.LeadID, m.EventID, string(m.Channel), string(m.Template), m.Subject, m.Content,
			m.RecipientPhone, m.RecipientEmail, m.SendAt, string(m.Status), m.SentAt, m.ErrorMessage,
			m.RemoteMessageID, m.ClaimedAt, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", m.Channel, m.Template, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ClaimDue flips up to limit due pending rows to processing in one tx.
// Rows left in processing by a crashed dispatcher are not reclaimed.
func (r *PostgresMessageRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM scheduled_messages
		WHERE status = 'pending' AND send_at <= $1
		ORDER BY send_at ASC, id ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	if len(msgs) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	claimedAt := time.Now().UTC()
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE scheduled_messages
			SET status = 'processing', claimed_at = $2, updated_at = $2
			WHERE id = $1
		`, m.ID, claimedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for i := range msgs {
		msgs[i].Status = model.StatusProcessing
		msgs[i].ClaimedAt = &claimedAt
		msgs[i].UpdatedAt = claimedAt
	}
	return msgs, nil
}

func (r *PostgresMessageRepo) MarkSent(ctx context.Context, id, remoteMessageID string, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = 'sent',
		    sent_at = $2,
		    remote_message_id = $3,
		    updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id, sentAt, remoteMessageID)
	return expectOneRow(res, err, id)
}

func (r *PostgresMessageRepo) MarkFailed(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = 'failed',
		    error_message = $2,
		    updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id, reason)
	return expectOneRow(res, err, id)
}

func (r *PostgresMessageRepo) Release(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = 'pending',
		    claimed_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id)
	return expectOneRow(res, err, id)
}

func (r *PostgresMessageRepo) ListSent(ctx context.Context, limit, offset int) ([]model.ScheduledMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM scheduled_messages
		WHERE status = 'sent'
		ORDER BY sent_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *PostgresMessageRepo) ListByLead(ctx context.Context, leadID string) ([]model.ScheduledMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM scheduled_messages
		WHERE lead_id = $1
		ORDER BY send_at ASC, channel DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *PostgresMessageRepo) CountByStatus(ctx context.Context, since time.Time) (model.MessageStats, error) {
	var stats model.MessageStats

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM scheduled_messages
		WHERE created_at >= $1
		GROUP BY status
	`, since)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		addStat(&stats, model.Status(status), n)
	}
	return stats, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]model.ScheduledMessage, error) {
	defer rows.Close()

	var out []model.ScheduledMessage
	for rows.Next() {
		var m model.ScheduledMessage
		var channel, template, status string
		var subject, phone, email, errMsg, remoteID sql.NullString
		var sentAt, claimedAt sql.NullTime

		if err := rows.Scan(
			&m.ID, &m.LeadID, &m.EventID, &channel, &template, &subject, &m.Content,
			&phone, &email, &m.SendAt, &status, &sentAt, &errMsg,
			&remoteID, &claimedAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}

		m.Channel = model.Channel(channel)
		m.Template = model.Template(template)
		m.Status = model.Status(status)
		m.Subject = nullString(subject)
		m.RecipientPhone = nullString(phone)
		m.RecipientEmail = nullString(email)
		m.ErrorMessage = nullString(errMsg)
		m.RemoteMessageID = nullString(remoteID)
		m.SentAt = nullTime(sentAt)
		m.ClaimedAt = nullTime(claimedAt)

		out = append(out, m)
	}
	return out, rows.Err()
}

func expectOneRow(res sql.Result, err error, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("message %s is not in processing state", id)
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
