package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/petrijr/sitesync/internal/persistence"
	"github.com/petrijr/sitesync/pkg/api"
)

// Open connects to PostgreSQL through the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewStore returns an api.Store that keeps representations in PostgreSQL.
// The schema is created when missing.
func NewStore(db *sql.DB) (api.Store, error) {
	s, err := persistence.NewSQLStore(db, persistence.DialectPostgres)
	if err != nil {
		return nil, err
	}
	return s, nil
}
