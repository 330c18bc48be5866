package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Sternrassler/history-river/pkg/store"
)

const cacheColumns = "uuid, year, event_title, context, content, is_cached, is_deleted, created_at, updated_at"

func (d *DB) GetCacheEntry(ctx context.Context, key string) (*store.CacheEntry, error) {
	a := d.newArgs()
	query := fmt.Sprintf("SELECT %s FROM timeline_event_cache WHERE uuid = %s AND is_deleted = %s",
		cacheColumns, a.add(key), a.add(false))
	entry, err := scanCacheEntry(d.db.QueryRowContext(ctx, query, a.values...))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get cache entry %s", key)
	}
	return entry, nil
}

// CreateCacheEntry inserts entry. A soft-deleted row holding the same key is
// replaced in place; a live row is left untouched and ErrDuplicateKey is
// returned.
func (d *DB) CreateCacheEntry(ctx context.Context, entry *store.CacheEntry) error {
	now := time.Now().UTC()
	entry.CreatedAt, entry.UpdatedAt = now, now
	a := d.newArgs()
	stmt := fmt.Sprintf(`INSERT INTO timeline_event_cache (%s)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)
ON CONFLICT (uuid) DO UPDATE SET
  year = excluded.year,
  event_title = excluded.event_title,
  context = excluded.context,
  content = excluded.content,
  is_cached = excluded.is_cached,
  is_deleted = excluded.is_deleted,
  created_at = excluded.created_at,
  updated_at = excluded.updated_at
WHERE timeline_event_cache.is_deleted = TRUE`,
		cacheColumns,
		a.add(entry.Key),
		a.add(entry.Year),
		a.add(entry.Title),
		a.add(entry.Context),
		a.add(entry.Content),
		a.add(entry.IsFresh),
		a.add(entry.IsDeleted),
		a.add(toMillis(entry.CreatedAt)),
		a.add(toMillis(entry.UpdatedAt)),
	)
	result, err := d.db.ExecContext(ctx, stmt, a.values...)
	if err != nil {
		if d.dialect.IsUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return errors.Wrapf(err, "failed to create cache entry %s", entry.Key)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return store.ErrDuplicateKey
	}
	return nil
}

func (d *DB) SoftDeleteCacheEntry(ctx context.Context, key string) (bool, error) {
	a := d.newArgs()
	stmt := fmt.Sprintf("UPDATE timeline_event_cache SET is_deleted = %s, updated_at = %s WHERE uuid = %s AND is_deleted = %s",
		a.add(true), a.add(toMillis(time.Now())), a.add(key), a.add(false))
	result, err := d.db.ExecContext(ctx, stmt, a.values...)
	if err != nil {
		return false, errors.Wrapf(err, "failed to soft delete cache entry %s", key)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return affected > 0, nil
}

func (d *DB) DeleteCacheEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	a := d.newArgs()
	result, err := d.db.ExecContext(ctx,
		"DELETE FROM timeline_event_cache WHERE updated_at <= "+a.add(toMillis(cutoff)), a.values...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete cache entries")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read affected rows")
	}
	return affected, nil
}

func (d *DB) ListCacheEntries(ctx context.Context, find *store.FindCacheEntry) ([]*store.CacheEntry, error) {
	a := d.newArgs()
	where := []string{"1 = 1"}
	if v := find.Year; v != nil {
		where = append(where, "year = "+a.add(*v))
	}
	if v := find.Title; v != nil {
		where = append(where, "event_title = "+a.add(*v))
	}
	if !find.IncludeDeleted {
		where = append(where, "is_deleted = "+a.add(false))
	}
	query := "SELECT " + cacheColumns + " FROM timeline_event_cache WHERE " + strings.Join(where, " AND ") +
		" ORDER BY updated_at DESC, uuid" + limitClause(find.Limit, 0)

	rows, err := d.db.QueryContext(ctx, query, a.values...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cache entries")
	}
	defer rows.Close()

	list := []*store.CacheEntry{}
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan cache entry")
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}

func scanCacheEntry(row scanner) (*store.CacheEntry, error) {
	var (
		entry              store.CacheEntry
		createdAt, updated int64
	)
	if err := row.Scan(
		&entry.Key,
		&entry.Year,
		&entry.Title,
		&entry.Context,
		&entry.Content,
		&entry.IsFresh,
		&entry.IsDeleted,
		&createdAt,
		&updated,
	); err != nil {
		return nil, err
	}
	entry.CreatedAt = fromMillis(createdAt)
	entry.UpdatedAt = fromMillis(updated)
	return &entry, nil
}
