package repo

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

var schemaV1 = []struct {
	name string
	stmt string
}{
	{"events", `
		CREATE TABLE IF NOT EXISTS events (
			id               TEXT PRIMARY KEY,
			short_code       TEXT NOT NULL UNIQUE,
			property_address TEXT NOT NULL,
			property_photos  JSONB NOT NULL DEFAULT '[]',
			price            BIGINT NOT NULL DEFAULT 0,
			bedrooms         INTEGER NOT NULL DEFAULT 0,
			bathrooms        DOUBLE PRECISION NOT NULL DEFAULT 0,
			square_feet      INTEGER NOT NULL DEFAULT 0,
			agent_name       TEXT NOT NULL,
			agent_photo      TEXT NOT NULL DEFAULT '',
			agent_brokerage  TEXT NOT NULL DEFAULT '',
			agent_email      TEXT NOT NULL DEFAULT '',
			agent_phone      TEXT NOT NULL DEFAULT '',
			event_date       TIMESTAMPTZ NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`},
	{"leads", `
		CREATE TABLE IF NOT EXISTS leads (
			id            TEXT PRIMARY KEY,
			event_id      TEXT NOT NULL REFERENCES events(id),
			first_name    TEXT NOT NULL,
			last_name     TEXT NOT NULL,
			email         TEXT NOT NULL,
			phone         TEXT NOT NULL,
			pre_approved  TEXT NOT NULL,
			has_agent     BOOLEAN NOT NULL,
			timeline      TEXT NOT NULL,
			interested_in TEXT NOT NULL DEFAULT '',
			notes         TEXT NOT NULL DEFAULT '',
			score         TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)`},
	{"idx_leads_event", `CREATE INDEX IF NOT EXISTS idx_leads_event ON leads(event_id)`},
	{"scheduled_messages", `
		CREATE TABLE IF NOT EXISTS scheduled_messages (
			id                TEXT PRIMARY KEY,
			lead_id           TEXT NOT NULL REFERENCES leads(id),
			event_id          TEXT NOT NULL REFERENCES events(id),
			channel           TEXT NOT NULL CHECK (channel IN ('sms', 'email')),
			template          TEXT NOT NULL,
			subject           TEXT NULL,
			content           TEXT NOT NULL,
			recipient_phone   TEXT NULL,
			recipient_email   TEXT NULL,
			send_at           TIMESTAMPTZ NOT NULL,
			status            TEXT NOT NULL DEFAULT 'pending',
			sent_at           TIMESTAMPTZ NULL,
			error_message     TEXT NULL,
			remote_message_id TEXT NULL,
			claimed_at        TIMESTAMPTZ NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK ((channel = 'sms') = (recipient_phone IS NOT NULL)),
			CHECK ((channel = 'email') = (recipient_email IS NOT NULL))
		)`},
	{"uq_scheduled_messages_lead_template_channel", `
		CREATE UNIQUE INDEX IF NOT EXISTS uq_scheduled_messages_lead_template_channel
		ON scheduled_messages(lead_id, template, channel)`},
	{"idx_scheduled_messages_status_send_at", `
		CREATE INDEX IF NOT EXISTS idx_scheduled_messages_status_send_at
		ON scheduled_messages(status, send_at)`},
}

// Migrate brings the Postgres schema up to SchemaVersion in one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range schemaV1 {
		if _, err := tx.ExecContext(ctx, s.stmt); err != nil {
			return fmt.Errorf("migrate: create %s: %w", s.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, SchemaVersion); err != nil {
		return fmt.Errorf("migrate: record version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}
