// internal/db/db.go
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/codr1/venuecal/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// DB is the backend database. Queries is bound to the connection, or to a
// transaction inside RunInTx.
type DB struct {
	*sqlx.DB
	Queries *Queries
}

// sqlite connection parameters understood by mattn/go-sqlite3.
var dsnDefaults = map[string]string{
	"_fk":           "1",
	"_busy_timeout": "5000",
	"_journal_mode": "WAL",
}

// New opens the SQLite database at dataSourceName and migrates it to the
// latest embedded schema.
func New(dataSourceName string) (*DB, error) {
	conn, err := sqlx.Open("sqlite3", withDSNDefaults(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; a second connection would only wait on the lock.
	conn.SetMaxOpenConns(1)

	if err := migrateUp(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{DB: conn, Queries: &Queries{q: conn}}, nil
}

// NewFromConfig opens the configured database, creating its directory first.
func NewFromConfig(cfg *config.Config) (*DB, error) {
	if cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if dir := filepath.Dir(cfg.Database.Filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return New(cfg.Database.Filename)
}

// withDSNDefaults adds the connection parameters the store relies on, leaving
// any the caller already set.
func withDSNDefaults(dsn string) string {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		params = url.Values{}
	}
	for k, v := range dsnDefaults {
		if !params.Has(k) {
			params.Set(k, v)
		}
	}
	return path + "?" + params.Encode()
}

// MigrationsFS exposes the embedded migrations to the migrate tool.
func MigrationsFS() embed.FS {
	return migrationsFS
}

func migrateUp(conn *sqlx.DB) error {
	driver, err := sqlite3.WithInstance(conn.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	default:
		if v, dirty, verr := m.Version(); verr == nil {
			log.Info().Uint("version", v).Bool("dirty", dirty).Msg("Database migrated")
		}
	}
	return nil
}

// WithTx returns a DB whose Queries run inside tx. The embedded connection is
// still the pool's, so callers inside a transaction must go through Queries.
func (db *DB) WithTx(tx *sqlx.Tx) *DB {
	return &DB{DB: db.DB, Queries: &Queries{q: tx}}
}

func (db *DB) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// RunInTx commits when fn returns nil and rolls back otherwise, including
// when fn panics.
func (db *DB) RunInTx(ctx context.Context, fn func(*DB) error) (err error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
	}()

	if err := fn(db.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
