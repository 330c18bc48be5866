package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/Sternrassler/history-river/pkg/store"
)

const dynastyColumns = "id, name, chinese_name, start_year, end_year, color, description, created_at, updated_at"

func (d *DB) CreateDynasty(ctx context.Context, dynasty *store.Dynasty) error {
	stamp(&dynasty.CreatedAt, &dynasty.UpdatedAt)
	a := d.newArgs()
	stmt := fmt.Sprintf("INSERT INTO dynasties (%s) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)",
		dynastyColumns,
		a.add(dynasty.ID),
		a.add(dynasty.Name),
		a.add(dynasty.ChineseName),
		a.add(dynasty.StartYear),
		a.add(dynasty.EndYear),
		a.add(dynasty.Color),
		a.add(dynasty.Description),
		a.add(toMillis(dynasty.CreatedAt)),
		a.add(toMillis(dynasty.UpdatedAt)),
	)
	if _, err := d.db.ExecContext(ctx, stmt, a.values...); err != nil {
		if d.dialect.IsUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return errors.Wrapf(err, "failed to create dynasty %s", dynasty.ID)
	}
	return nil
}

func (d *DB) GetDynasty(ctx context.Context, id string) (*store.Dynasty, error) {
	a := d.newArgs()
	row := d.db.QueryRowContext(ctx,
		"SELECT "+dynastyColumns+" FROM dynasties WHERE id = "+a.add(id), a.values...)
	dynasty, err := scanDynasty(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get dynasty %s", id)
	}
	return dynasty, nil
}

func (d *DB) ListDynasties(ctx context.Context, find *store.FindDynasty) ([]*store.Dynasty, error) {
	query := "SELECT " + dynastyColumns + " FROM dynasties ORDER BY start_year, id"
	query += limitClause(find.Limit, find.Offset)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list dynasties")
	}
	defer rows.Close()

	list := []*store.Dynasty{}
	for rows.Next() {
		dynasty, err := scanDynasty(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan dynasty")
		}
		list = append(list, dynasty)
	}
	return list, rows.Err()
}

func (d *DB) CountDynasties(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dynasties").Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count dynasties")
	}
	return count, nil
}

func (d *DB) FindDynastyForYear(ctx context.Context, year int) (*store.Dynasty, error) {
	a := d.newArgs()
	query := fmt.Sprintf(
		"SELECT %s FROM dynasties WHERE start_year <= %s AND end_year >= %s ORDER BY start_year DESC, id LIMIT 1",
		dynastyColumns, a.add(year), a.add(year))
	dynasty, err := scanDynasty(d.db.QueryRowContext(ctx, query, a.values...))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find dynasty for year %d", year)
	}
	return dynasty, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDynasty(row scanner) (*store.Dynasty, error) {
	var (
		dynasty            store.Dynasty
		createdAt, updated int64
	)
	if err := row.Scan(
		&dynasty.ID,
		&dynasty.Name,
		&dynasty.ChineseName,
		&dynasty.StartYear,
		&dynasty.EndYear,
		&dynasty.Color,
		&dynasty.Description,
		&createdAt,
		&updated,
	); err != nil {
		return nil, err
	}
	dynasty.CreatedAt = fromMillis(createdAt)
	dynasty.UpdatedAt = fromMillis(updated)
	return &dynasty, nil
}

func limitClause(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	clause := fmt.Sprintf(" LIMIT %d", limit)
	if offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", offset)
	}
	return clause
}
