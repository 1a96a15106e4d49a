package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sevamap/coverage-cli/internal/boundary"
	"github.com/sevamap/coverage-cli/internal/engine"
)

const testBoundaryGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "Testland"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[77, 12], [78, 12], [78, 13], [77, 13], [77, 12]]]
      }
    }
  ]
}`

func newTestServer(t *testing.T) *http.ServeMux {
	t.Helper()

	path := filepath.Join(t.TempDir(), "boundary.geojson")
	require.NoError(t, os.WriteFile(path, []byte(testBoundaryGeoJSON), 0o644))

	eng := engine.New(boundary.NewGeoJSONProvider(path, "name"), nil, engine.Options{})
	return buildMux(eng)
}

func computeTestDiagram(t *testing.T, mux *http.ServeMux) {
	t.Helper()

	body := []byte(`{
		"region": "testland",
		"seeds": [
			{"id": "nw", "name": "Northwest Clinic", "lng": 77.25, "lat": 12.75},
			{"id": "ne", "name": "Northeast Clinic", "lng": 77.75, "lat": 12.75},
			{"id": "sw", "name": "Southwest Clinic", "lng": 77.25, "lat": 12.25},
			{"id": "se", "name": "Southeast Clinic", "lng": 77.75, "lat": 12.25}
		]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/compute", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestServeHealth(t *testing.T) {
	mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeComputeAndSummary(t *testing.T) {
	mux := newTestServer(t)
	computeTestDiagram(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var s struct {
		FaceCount int `json:"face_count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	assert.Equal(t, 4, s.FaceCount)
}

func TestServeComputeInvalidBody(t *testing.T) {
	mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/compute", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestServeComputeTooFewSeeds(t *testing.T) {
	mux := newTestServer(t)

	body := []byte(`{"region": "testland", "seeds": [{"id": "a", "lng": 77.5, "lat": 12.5}]}`)
	req := httptest.NewRequest(http.MethodPost, "/compute", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeComputeUnknownRegion(t *testing.T) {
	mux := newTestServer(t)

	body := []byte(`{
		"region": "atlantis",
		"seeds": [
			{"id": "a", "lng": 77.2, "lat": 12.2},
			{"id": "b", "lng": 77.8, "lat": 12.2},
			{"id": "c", "lng": 77.5, "lat": 12.8}
		]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/compute", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "clip region not found")
}

func TestServeQueriesBeforeCompute(t *testing.T) {
	mux := newTestServer(t)

	for _, url := range []string{
		"/query/point?lng=77.5&lat=12.5",
		"/query/range?min_lng=77&min_lat=12&max_lng=78&max_lat=13",
		"/query/nearest?lng=77.5&lat=12.5",
		"/faces/0/adjacent",
		"/query/top",
		"/summary",
		"/analytics",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusConflict, rr.Code, url)
	}
}

func TestServePointQuery(t *testing.T) {
	mux := newTestServer(t)
	computeTestDiagram(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/query/point?lng=77.2&lat=12.8", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Covered bool `json:"covered"`
		Face    struct {
			FacilityID string `json:"facility_id"`
		} `json:"face"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Covered)
	assert.Equal(t, "nw", resp.Face.FacilityID)
}

func TestServePointQueryMiss(t *testing.T) {
	mux := newTestServer(t)
	computeTestDiagram(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/query/point?lng=10&lat=50", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["covered"])
}

func TestServePointQueryMissingParams(t *testing.T) {
	mux := newTestServer(t)
	computeTestDiagram(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/query/point?lng=77.5", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "lat")
}

func TestServeNearest(t *testing.T) {
	mux := newTestServer(t)
	computeTestDiagram(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/query/nearest?lng=77.25&lat=12.25&k=2", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var faces []struct {
		FacilityID string `json:"facility_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &faces))
	require.Len(t, faces, 2)
	assert.Equal(t, "sw", faces[0].FacilityID)
}

func TestServeAdjacent(t *testing.T) {
	mux := newTestServer(t)
	computeTestDiagram(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/faces/0/adjacent", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var faces []json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &faces))
	assert.NotEmpty(t, faces)
}

func TestServeAdjacentBadID(t *testing.T) {
	mux := newTestServer(t)
	computeTestDiagram(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/faces/abc/adjacent", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeAnalytics(t *testing.T) {
	mux := newTestServer(t)
	computeTestDiagram(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var report struct {
		EnclosingCircle struct {
			RadiusKM float64 `json:"radius_km"`
		} `json:"enclosing_circle"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Greater(t, report.EnclosingCircle.RadiusKM, 0.0)
}

func TestClientLimiter(t *testing.T) {
	cl := newClientLimiter(rate.Limit(1), 2)

	assert.True(t, cl.allow("10.0.0.1:1234"))
	assert.True(t, cl.allow("10.0.0.1:1234"))
	assert.False(t, cl.allow("10.0.0.1:5678"), "bucket is per host, not per port")

	// A different client gets its own bucket.
	assert.True(t, cl.allow("10.0.0.2:1234"))
}

func TestClientLimiterMiddleware(t *testing.T) {
	cl := newClientLimiter(rate.Limit(1), 1)
	handler := cl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.1.1.1:9999"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
