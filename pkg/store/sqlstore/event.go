package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/Sternrassler/history-river/pkg/store"
)

const eventSelect = `SELECT e.id, e.year, e.title, e.event_type, e.description, e.importance,
       e.dynasty_id, e.source_reference, e.created_at, e.updated_at,
       d.name, d.chinese_name, d.start_year, d.end_year
FROM historical_events e
LEFT JOIN dynasties d ON d.id = e.dynasty_id`

func (d *DB) CreateEvent(ctx context.Context, event *store.Event) error {
	stamp(&event.CreatedAt, &event.UpdatedAt)
	a := d.newArgs()
	var dynastyID any
	if event.DynastyID != nil {
		dynastyID = *event.DynastyID
	}
	stmt := fmt.Sprintf(`INSERT INTO historical_events
  (year, title, event_type, description, importance, dynasty_id, source_reference, created_at, updated_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)
RETURNING id`,
		a.add(event.Year),
		a.add(event.Title),
		a.add(string(event.Type)),
		a.add(event.Description),
		a.add(event.Importance),
		a.add(dynastyID),
		a.add(event.SourceReference),
		a.add(toMillis(event.CreatedAt)),
		a.add(toMillis(event.UpdatedAt)),
	)
	if err := d.db.QueryRowContext(ctx, stmt, a.values...).Scan(&event.ID); err != nil {
		if d.dialect.IsUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return errors.Wrapf(err, "failed to create event %q", event.Title)
	}
	return nil
}

func (d *DB) GetEvent(ctx context.Context, id int64) (*store.Event, error) {
	a := d.newArgs()
	row := d.db.QueryRowContext(ctx, eventSelect+" WHERE e.id = "+a.add(id), a.values...)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get event %d", id)
	}
	return event, nil
}

func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	a := d.newArgs()
	where := eventWhere(find, a)
	query := eventSelect + " WHERE " + strings.Join(where, " AND ") +
		" ORDER BY e.year, e.importance, e.title, e.id" + limitClause(find.Limit, find.Offset)

	rows, err := d.db.QueryContext(ctx, query, a.values...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	list := []*store.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		list = append(list, event)
	}
	return list, rows.Err()
}

func (d *DB) CountEvents(ctx context.Context, find *store.FindEvent) (int, error) {
	a := d.newArgs()
	where := eventWhere(find, a)
	var count int
	query := "SELECT COUNT(*) FROM historical_events e WHERE " + strings.Join(where, " AND ")
	if err := d.db.QueryRowContext(ctx, query, a.values...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count events")
	}
	return count, nil
}

func (d *DB) EventExists(ctx context.Context, year int, title string) (bool, error) {
	a := d.newArgs()
	query := fmt.Sprintf("SELECT 1 FROM historical_events WHERE year = %s AND title = %s LIMIT 1",
		a.add(year), a.add(title))
	var found int
	err := d.db.QueryRowContext(ctx, query, a.values...).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to check event")
	}
	return true, nil
}

func (d *DB) CountEventsByDynasty(ctx context.Context) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT dynasty_id, COUNT(*) FROM historical_events WHERE dynasty_id IS NOT NULL GROUP BY dynasty_id")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count events by dynasty")
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan dynasty count")
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

func (d *DB) EventTypeStats(ctx context.Context) ([]store.TypeCount, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT event_type, COUNT(*) FROM historical_events GROUP BY event_type")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count event types")
	}
	defer rows.Close()

	var list []store.TypeCount
	for rows.Next() {
		var (
			eventType string
			count     int
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan event type count")
		}
		list = append(list, store.TypeCount{Type: store.EventType(eventType), Count: count})
	}
	return list, rows.Err()
}

func (d *DB) ImportanceStats(ctx context.Context) ([]store.ImportanceCount, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT importance, COUNT(*) FROM historical_events GROUP BY importance")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count importance levels")
	}
	defer rows.Close()

	var list []store.ImportanceCount
	for rows.Next() {
		var c store.ImportanceCount
		if err := rows.Scan(&c.Importance, &c.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan importance count")
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func eventWhere(find *store.FindEvent, a *args) []string {
	where := []string{"1 = 1"}
	if v := find.YearFrom; v != nil {
		where = append(where, "e.year >= "+a.add(*v))
	}
	if v := find.YearTo; v != nil {
		where = append(where, "e.year <= "+a.add(*v))
	}
	if v := find.Type; v != nil {
		where = append(where, "e.event_type = "+a.add(string(*v)))
	}
	if v := find.Importance; v != nil {
		where = append(where, "e.importance = "+a.add(*v))
	}
	if v := find.MaxImportance; v != nil {
		where = append(where, "e.importance <= "+a.add(*v))
	}
	if v := find.DynastyID; v != nil {
		where = append(where, "e.dynasty_id = "+a.add(*v))
	}
	if find.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(find.Search)) + "%"
		where = append(where, fmt.Sprintf(
			`(LOWER(e.title) LIKE %s ESCAPE '\' OR LOWER(e.description) LIKE %s ESCAPE '\')`,
			a.add(pattern), a.add(pattern)))
	}
	return where
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanEvent(row scanner) (*store.Event, error) {
	var (
		event              store.Event
		eventType          string
		dynastyID          sql.NullString
		createdAt, updated int64
		dName, dChinese    sql.NullString
		dStart, dEnd       sql.NullInt64
	)
	if err := row.Scan(
		&event.ID,
		&event.Year,
		&event.Title,
		&eventType,
		&event.Description,
		&event.Importance,
		&dynastyID,
		&event.SourceReference,
		&createdAt,
		&updated,
		&dName,
		&dChinese,
		&dStart,
		&dEnd,
	); err != nil {
		return nil, err
	}
	event.Type = store.EventType(eventType)
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updated)
	if dynastyID.Valid {
		id := dynastyID.String
		event.DynastyID = &id
		if dChinese.Valid {
			event.Dynasty = &store.DynastyRef{
				ID:          id,
				Name:        dName.String,
				ChineseName: dChinese.String,
				StartYear:   int(dStart.Int64),
				EndYear:     int(dEnd.Int64),
			}
		}
	}
	return &event, nil
}
