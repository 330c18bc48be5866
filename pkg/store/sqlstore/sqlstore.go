// Package sqlstore implements store.Driver over database/sql. SQL is written
// once and rendered through a Dialect, which supplies placeholders, error
// classification and the embedded migration files of each backend.
package sqlstore

import (
	"context"
	"database/sql"
	"io/fs"
	"time"

	"github.com/pkg/errors"

	"github.com/Sternrassler/history-river/pkg/store"
)

// Dialect captures what differs between SQL backends.
type Dialect interface {
	// Name is the database/sql driver name.
	Name() string
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string
	// IsUniqueViolation reports whether err is a primary/unique key violation.
	IsUniqueViolation(err error) bool
	// Migrations returns the embedded migration files.
	Migrations() fs.FS
}

// DB is a store.Driver backed by a *sql.DB.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate applies the dialect's embedded migrations.
func (d *DB) Migrate(ctx context.Context) error {
	if err := ApplyMigrations(ctx, d.db, d.dialect, d.dialect.Migrations()); err != nil {
		return errors.Wrap(err, "failed to migrate")
	}
	return nil
}

// args accumulates bind arguments and renders their placeholders.
type args struct {
	dialect Dialect
	values  []any
}

func (a *args) add(v any) string {
	a.values = append(a.values, v)
	return a.dialect.Placeholder(len(a.values))
}

func (d *DB) newArgs() *args {
	return &args{dialect: d.dialect}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

var _ store.Driver = (*DB)(nil)
