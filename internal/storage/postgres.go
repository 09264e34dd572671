package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"guild-economy/internal/config"
	"guild-economy/internal/dberr"
	"guild-economy/internal/docpath"
	"guild-economy/internal/pkg/db"
)

// documentKey identifies the single logical document in a collection table.
const documentKey = "economy"

// PostgresEngine stores the document as one JSONB row in a table named after
// the configured collection, inside the configured database.
type PostgresEngine struct {
	cfg config.ConnectionConfig

	mu   sync.RWMutex
	pool *db.Pool
}

// NewPostgresEngine creates a document engine. Nothing is dialed until Connect.
func NewPostgresEngine(cfg config.ConnectionConfig) *PostgresEngine {
	return &PostgresEngine{cfg: cfg}
}

// Name implements Engine.
func (e *PostgresEngine) Name() string { return "postgres" }

func (e *PostgresEngine) table() string {
	return pgx.Identifier{e.cfg.CollectionName}.Sanitize()
}

// Connect dials the database and makes sure the collection table exists.
// Calling it on a connected engine is a no-op.
func (e *PostgresEngine) Connect(ctx context.Context) error {
	if err := e.cfg.Validate(); err != nil {
		return &dberr.Error{Kind: dberr.ErrMisconfigured, Op: "connect", Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		return nil
	}

	pool, err := db.NewPool(ctx, &e.cfg)
	if err != nil {
		return dberr.Unavailable("connect", err)
	}

	if err := e.createTable(ctx, pool); err != nil {
		pool.Close()
		return dberr.Unavailable("connect", err)
	}

	log.Info().
		Str("database", e.cfg.DBName).
		Str("collection", e.cfg.CollectionName).
		Msg("Document storage ready")

	e.pool = pool
	return nil
}

func (e *PostgresEngine) createTable(ctx context.Context, pool *db.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+e.table()+` (
			name TEXT PRIMARY KEY,
			data JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Check pings the database and recreates a dropped collection table.
func (e *PostgresEngine) Check(ctx context.Context) (bool, error) {
	pool, err := e.connected()
	if err != nil {
		return false, err
	}
	if err := pool.HealthCheck(ctx); err != nil {
		return false, dberr.Unavailable("check", err)
	}

	var exists bool
	err = pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, e.table()).Scan(&exists)
	if err != nil {
		return false, dberr.Unavailable("check", err)
	}
	if exists {
		return false, nil
	}

	log.Warn().
		Str("collection", e.cfg.CollectionName).
		Msg("Collection table is missing, recreating it")
	if err := e.createTable(ctx, pool); err != nil {
		return false, dberr.Unavailable("check", err)
	}
	return true, nil
}

func (e *PostgresEngine) connected() (*db.Pool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return nil, dberr.ErrNotConnected
	}
	return e.pool, nil
}

// ReadAll implements Engine. A collection without a document row reads as
// an empty document.
func (e *PostgresEngine) ReadAll(ctx context.Context) (docpath.Document, error) {
	pool, err := e.connected()
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = pool.QueryRow(ctx,
		`SELECT data FROM `+e.table()+` WHERE name = $1`, documentKey,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return docpath.Document{}, nil
		}
		return nil, dberr.Unavailable("read", err)
	}

	return decode("read", raw)
}

// WriteAll implements Engine by upserting the document row.
func (e *PostgresEngine) WriteAll(ctx context.Context, doc docpath.Document) error {
	pool, err := e.connected()
	if err != nil {
		return err
	}

	raw, err := encode(doc)
	if err != nil {
		return dberr.Validation("write", "", "document is not serializable: %v", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO `+e.table()+` (name, data, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (name)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, documentKey, string(raw))
	if err != nil {
		return dberr.Unavailable("write", err)
	}
	return nil
}

// Close releases the connection pool. The engine can be connected again.
func (e *PostgresEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	return nil
}
