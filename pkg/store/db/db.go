// Package db selects a store driver by name.
package db

import (
	"github.com/pkg/errors"

	"github.com/Sternrassler/history-river/pkg/store"
	"github.com/Sternrassler/history-river/pkg/store/postgres"
	"github.com/Sternrassler/history-river/pkg/store/sqlite"
)

// NewDriver opens the driver named by driver. For sqlite, dsn is a file path;
// for postgres, it is a connection string.
func NewDriver(driver, dsn string) (store.Driver, error) {
	var (
		d   store.Driver
		err error
	)
	switch driver {
	case "sqlite", "":
		d, err = sqlite.Open(dsn)
	case "postgres":
		d, err = postgres.Open(dsn)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'sqlite' and 'postgres' are supported", driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return d, nil
}
