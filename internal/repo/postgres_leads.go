package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeventeLantos/openhouse-followup/internal/model"
)

const leadColumns = `id, event_id, first_name, last_name, email, phone, pre_approved,
	has_agent, timeline, interested_in, notes, score, created_at, updated_at`

type PostgresLeadRepo struct {
	db *sql.DB
}

func NewPostgresLeadRepo(db *sql.DB) *PostgresLeadRepo {
	return &PostgresLeadRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*model.Lead, error) {
	var l model.Lead
	var preApproved, timeline, score string
	if err := row.Scan(
		&l.ID, &l.EventID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &preApproved,
		&l.HasAgent, &timeline, &l.InterestedIn, &l.Notes, &score, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.PreApproved = model.PreApproval(preApproved)
	l.Timeline = model.Timeline(timeline)
	l.Score = model.Score(score)
	return &l, nil
}

func (r *PostgresLeadRepo) CreateLead(ctx context.Context, l *model.Lead) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, l.ID, l.EventID, l.FirstName, l.LastName, l.Email, l.Phone, string(l.PreApproved),
		l.HasAgent, string(l.Timeline), l.InterestedIn, l.Notes, string(l.Score), l.CreatedAt, l.UpdatedAt)
	return err
}

func (r *PostgresLeadRepo) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "lead", ID: id}
	}
	return l, err
}

func (r *PostgresLeadRepo) ListLeadsByEvent(ctx context.Context, eventID string) ([]model.Lead, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE event_id = $1
		ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *PostgresLeadRepo) AppendLeadNote(ctx context.Context, id, entry string) (*model.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, `
		UPDATE leads
		SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n\n' || $2 END,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns, id, entry))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "lead", ID: id}
	}
	return l, err
}

func (r *PostgresLeadRepo) UpdateLeadScore(ctx context.Context, id string, score model.Score) (*model.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, `
		UPDATE leads
		SET score = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns, id, string(score)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "lead", ID: id}
	}
	return l, err
}
