// Package migration applies the versioned receivables schema with golang-migrate.
package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/erp/receivables/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Status is the schema version as recorded in schema_migrations
type Status struct {
	Version uint
	Dirty   bool
	Applied bool
}

// Migrator runs schema migrations against PostgreSQL
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New creates a Migrator over db. An empty dir uses the migrations compiled
// into the binary; otherwise SQL files are read from dir.
func New(db *sql.DB, dir string, log *zap.Logger) (*Migrator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres migration driver: %w", err)
	}

	var m *migrate.Migrate
	if dir == "" {
		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return nil, fmt.Errorf("open embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("create migrator: %w", err)
		}
	} else {
		m, err = migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("create migrator for %s: %w", dir, err)
		}
	}
	m.Log = &migrateLogger{log: log}
	return &Migrator{m: m, log: log}, nil
}

// Up applies every pending migration
func (r *Migrator) Up() error {
	return r.run("up", r.m.Up)
}

// Down rolls back the most recent migration
func (r *Migrator) Down() error {
	return r.run("down", func() error { return r.m.Steps(-1) })
}

// Steps applies n migrations, rolling back when n is negative
func (r *Migrator) Steps(n int) error {
	return r.run(fmt.Sprintf("steps %d", n), func() error { return r.m.Steps(n) })
}

// Force marks version as applied without running it, clearing the dirty flag
func (r *Migrator) Force(version int) error {
	if err := r.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	r.log.Warn("Migration version forced", zap.Int("version", version))
	return nil
}

// Status reports the current schema version
func (r *Migrator) Status() (Status, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read migration version: %w", err)
	}
	return Status{Version: v, Dirty: dirty, Applied: true}, nil
}

// Close releases the source and database handles
func (r *Migrator) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (r *Migrator) run(op string, fn func() error) error {
	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		r.log.Info("Schema already up to date", zap.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s: %w", op, err)
	}
	st, err := r.Status()
	if err != nil {
		return err
	}
	r.log.Info("Migration applied", zap.String("op", op), zap.Uint("version", st.Version))
	return nil
}

// migrateLogger adapts zap to migrate.Logger
type migrateLogger struct {
	log *zap.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.log.Sugar().Debugf(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return l.log.Core().Enabled(zap.DebugLevel)
}

// EmbeddedVersions lists the migration versions compiled into the binary
func EmbeddedVersions() ([]string, error) {
	return listVersions(migrations.FS)
}
