// Package regionstore persists administrative regions with census
// population and boundary geometry. Two drivers: SQLite for local runs
// and Postgres for shared deployments.
package regionstore

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sevamap/coverage-cli/internal/diagram"
)

// Store is the administrative-region provider used by the population
// aggregation step.
type Store interface {
	Migrate(ctx context.Context) error
	Put(ctx context.Context, regions []diagram.AdministrativeRegion) error
	List(ctx context.Context) ([]diagram.AdministrativeRegion, error)
	Close() error
}

// Open returns a store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("regionstore: unknown driver %q", driver)
	}
}
