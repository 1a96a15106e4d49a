package regionstore

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/sevamap/coverage-cli/internal/diagram"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometry is
// stored as WKB blobs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	parent_id  TEXT,
	population REAL NOT NULL DEFAULT 0,
	area_km2   REAL NOT NULL DEFAULT 0,
	boundary   BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_regions_parent_id ON regions(parent_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put inserts or replaces regions in one transaction.
func (s *SQLiteStore) Put(ctx context.Context, regions []diagram.AdministrativeRegion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO regions (id, name, parent_id, population, area_km2, boundary)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare put")
	}
	defer stmt.Close()

	for _, r := range regions {
		if r.Polygon == nil {
			return eris.Errorf("sqlite: region %s has no geometry", r.ID)
		}
		blob, err := wkb.Marshal(r.Polygon, wkb.NDR)
		if err != nil {
			return eris.Wrapf(err, "sqlite: encode region %s", r.ID)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Name, nullable(r.ParentID), r.Population, r.AreaKM2, blob,
		); err != nil {
			return eris.Wrapf(err, "sqlite: put region %s", r.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit put")
}

// List returns all stored regions ordered by id.
func (s *SQLiteStore) List(ctx context.Context) ([]diagram.AdministrativeRegion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, parent_id, population, area_km2, boundary FROM regions ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close()

	var out []diagram.AdministrativeRegion
	for rows.Next() {
		var (
			r        diagram.AdministrativeRegion
			parentID sql.NullString
			blob     []byte
		)
		if err := rows.Scan(&r.ID, &r.Name, &parentID, &r.Population, &r.AreaKM2, &blob); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		r.ParentID = parentID.String
		r.Polygon, err = decodeBoundary(blob)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode region %s", r.ID)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list regions iterate")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// decodeBoundary parses WKB and promotes a bare Polygon to MultiPolygon.
func decodeBoundary(blob []byte) (*geom.MultiPolygon, error) {
	g, err := wkb.Unmarshal(blob)
	if err != nil {
		return nil, err
	}
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(t); err != nil {
			return nil, err
		}
		return mp, nil
	default:
		return nil, eris.Errorf("regionstore: unexpected geometry type %T", g)
	}
}
