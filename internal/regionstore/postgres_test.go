package regionstore

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sevamap/coverage-cli/internal/diagram"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS regions`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Put_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("d1", "North District", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Put(context.Background(), []diagram.AdministrativeRegion{
		{ID: "d1", Name: "North District", Polygon: testBoundary(t), Population: 120000, AreaKM2: 340.5},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Put_MissingGeometry(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.Put(context.Background(), []diagram.AdministrativeRegion{{ID: "bad", Name: "No Geom"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no geometry")
}

func TestPostgresStore_List(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	blob, err := ewkb.Marshal(testBoundary(t).SetSRID(4326), ewkb.NDR)
	require.NoError(t, err)

	parent := "state-1"
	mock.ExpectQuery(`SELECT id, name, parent_id, population, area_km2, boundary FROM regions`).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "name", "parent_id", "population", "area_km2", "boundary"},
		).
			AddRow("d1", "North District", &parent, 120000.0, 340.5, blob).
			AddRow("d2", "South District", (*string)(nil), 98000.0, 210.0, blob))

	got, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "state-1", got[0].ParentID)
	assert.Empty(t, got[1].ParentID)
	require.NotNil(t, got[0].Polygon)
	assert.Equal(t, 1, got[0].Polygon.NumPolygons())
}

func TestPostgresStore_List_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, parent_id`).
		WillReturnError(assert.AnError)

	_, err := s.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list regions")
}
