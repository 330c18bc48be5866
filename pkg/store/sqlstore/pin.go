package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/Sternrassler/history-river/pkg/store"
)

func (d *DB) CreatePin(ctx context.Context, pin *store.Pin) error {
	if pin.CreatedAt.IsZero() {
		pin.CreatedAt = time.Now().UTC()
	}
	a := d.newArgs()
	var rating any
	if pin.DoubanRating != nil {
		rating = *pin.DoubanRating
	}
	stmt := fmt.Sprintf(
		"INSERT INTO river_pins (id, job_id, title, year, douban_rating, created_at) VALUES (%s, %s, %s, %s, %s, %s)",
		a.add(pin.ID), a.add(pin.JobID), a.add(pin.Title), a.add(pin.Year), a.add(rating), a.add(toMillis(pin.CreatedAt)))
	if _, err := d.db.ExecContext(ctx, stmt, a.values...); err != nil {
		if d.dialect.IsUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return errors.Wrapf(err, "failed to create pin %s", pin.ID)
	}
	return nil
}

func (d *DB) ListPins(ctx context.Context, find *store.FindPin) ([]*store.Pin, error) {
	a := d.newArgs()
	query := "SELECT id, job_id, title, year, douban_rating, created_at FROM river_pins"
	if find.JobID != "" {
		query += " WHERE job_id = " + a.add(find.JobID)
	}
	query += " ORDER BY year, created_at"

	rows, err := d.db.QueryContext(ctx, query, a.values...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pins")
	}
	defer rows.Close()

	list := []*store.Pin{}
	for rows.Next() {
		var (
			pin       store.Pin
			rating    sql.NullFloat64
			createdAt int64
		)
		if err := rows.Scan(&pin.ID, &pin.JobID, &pin.Title, &pin.Year, &rating, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan pin")
		}
		if rating.Valid {
			value := rating.Float64
			pin.DoubanRating = &value
		}
		pin.CreatedAt = fromMillis(createdAt)
		list = append(list, &pin)
	}
	return list, rows.Err()
}
