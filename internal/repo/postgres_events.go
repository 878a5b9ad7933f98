package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/LeventeLantos/openhouse-followup/internal/model"
)

const pgUniqueViolation = "23505"

type PostgresEventRepo struct {
	db *sql.DB
}

func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

func (r *PostgresEventRepo) CreateEvent(ctx context.Context, e *model.Event) error {
	photos, err := json.Marshal(nonNilStrings(e.PropertyPhotos))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, short_code, property_address, property_photos, price,
		                    bedrooms, bathrooms, square_feet, agent_name, agent_photo,
		                    agent_brokerage, agent_email, agent_phone, event_date, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, e.ID, e.ShortCode, e.PropertyAddress, string(photos), e.Price,
		e.Bedrooms, e.Bathrooms, e.SquareFeet, e.AgentName, e.AgentPhoto,
		e.AgentBrokerage, e.AgentEmail, e.AgentPhone, e.EventDate, e.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("event short code %q: %w", e.ShortCode, ErrDuplicate)
	}
	return err
}

func (r *PostgresEventRepo) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	var photos []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT id, short_code, property_address, property_photos, price,
		       bedrooms, bathrooms, square_feet, agent_name, agent_photo,
		       agent_brokerage, agent_email, agent_phone, event_date, created_at
		FROM events
		WHERE id = $1
	`, id).Scan(
		&e.ID, &e.ShortCode, &e.PropertyAddress, &photos, &e.Price,
		&e.Bedrooms, &e.Bathrooms, &e.SquareFeet, &e.AgentName, &e.AgentPhoto,
		&e.AgentBrokerage, &e.AgentEmail, &e.AgentPhone, &e.EventDate, &e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "event", ID: id}
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(photos, &e.PropertyPhotos); err != nil {
		return nil, fmt.Errorf("decode property photos: %w", err)
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
