package regionstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sevamap/coverage-cli/internal/diagram"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock implements
// it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool. Geometry is stored as
// EWKB with SRID 4326.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool, mock pools included.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	parent_id  TEXT,
	population DOUBLE PRECISION NOT NULL DEFAULT 0,
	area_km2   DOUBLE PRECISION NOT NULL DEFAULT 0,
	boundary   BYTEA NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_regions_parent_id ON regions(parent_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, regions []diagram.AdministrativeRegion) error {
	for _, r := range regions {
		if r.Polygon == nil {
			return eris.Errorf("postgres: region %s has no geometry", r.ID)
		}
		blob, err := ewkb.Marshal(r.Polygon.SetSRID(4326), ewkb.NDR)
		if err != nil {
			return eris.Wrapf(err, "postgres: encode region %s", r.ID)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO regions (id, name, parent_id, population, area_km2, boundary)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET
			   name = EXCLUDED.name,
			   parent_id = EXCLUDED.parent_id,
			   population = EXCLUDED.population,
			   area_km2 = EXCLUDED.area_km2,
			   boundary = EXCLUDED.boundary`,
			r.ID, r.Name, nullable(r.ParentID), r.Population, r.AreaKM2, blob,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: put region %s", r.ID)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]diagram.AdministrativeRegion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, parent_id, population, area_km2, boundary FROM regions ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	var out []diagram.AdministrativeRegion
	for rows.Next() {
		var (
			r        diagram.AdministrativeRegion
			parentID *string
			blob     []byte
		)
		if err := rows.Scan(&r.ID, &r.Name, &parentID, &r.Population, &r.AreaKM2, &blob); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		if parentID != nil {
			r.ParentID = *parentID
		}
		r.Polygon, err = decodeEWKB(blob)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: decode region %s", r.ID)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list regions iterate")
}

func decodeEWKB(blob []byte) (*geom.MultiPolygon, error) {
	g, err := ewkb.Unmarshal(blob)
	if err != nil {
		return nil, err
	}
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(t.SRID())
		if err := mp.Push(t); err != nil {
			return nil, err
		}
		return mp, nil
	default:
		return nil, eris.Errorf("regionstore: unexpected geometry type %T", g)
	}
}
