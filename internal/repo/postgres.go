package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore bundles the Postgres repositories over one pool.
type PostgresStore struct {
	*PostgresEventRepo
	*PostgresLeadRepo
	*PostgresMessageRepo
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		PostgresEventRepo:   NewPostgresEventRepo(db),
		PostgresLeadRepo:    NewPostgresLeadRepo(db),
		PostgresMessageRepo: NewPostgresMessageRepo(db),
	}
}

// OpenPostgres opens a pgx-backed pool, checks connectivity and applies
// the schema.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
