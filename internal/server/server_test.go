package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/UnknownOlympus/cartograph/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(_ context.Context) error { return f.err }

type fakeLookup struct {
	coords      *models.Coordinates
	address     *models.Address
	suggestions []string
	err         error

	lastQuery   string
	lastAddress models.Address
	lastCoords  models.Coordinates
}

func (f *fakeLookup) CoordinatesFromAddress(_ context.Context, address models.Address) (*models.Coordinates, error) {
	f.lastAddress = address
	return f.coords, f.err
}

func (f *fakeLookup) CoordinatesFromQuery(_ context.Context, query string) (*models.Coordinates, error) {
	f.lastQuery = query
	return f.coords, f.err
}

func (f *fakeLookup) AddressFromCoordinates(_ context.Context, coords models.Coordinates) (*models.Address, error) {
	f.lastCoords = coords
	return f.address, f.err
}

func (f *fakeLookup) SuggestionsFromQuery(_ context.Context, query string) ([]string, error) {
	f.lastQuery = query
	return f.suggestions, f.err
}

func newTestServer(dbErr error, lookup server.Lookup) *server.Server {
	reg := prometheus.NewRegistry()
	metrics.NewMetrics(reg).APIErrors.Inc()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return server.New(0, reg, fakePinger{err: dbErr}, lookup, logger)
}

func serve(srv *server.Server, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	srv.ServeHTTP(rec, req)

	return rec
}

func TestHealthz(t *testing.T) {
	t.Run("database reachable", func(t *testing.T) {
		rec := serve(newTestServer(nil, nil), http.MethodGet, "/healthz", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("database unreachable", func(t *testing.T) {
		rec := serve(newTestServer(assert.AnError, nil), http.MethodGet, "/healthz", "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "DB ping failed", rec.Body.String())
	})
}

func TestMetrics(t *testing.T) {
	rec := serve(newTestServer(nil, nil), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "geocoding_provider_api_errors_total 1")
}

func TestLookupRoutes(t *testing.T) {
	t.Run("routes are absent without a lookup", func(t *testing.T) {
		rec := serve(newTestServer(nil, nil), http.MethodGet, "/v1/geocode?q=ottawa", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("geocode query", func(t *testing.T) {
		lookup := &fakeLookup{coords: &models.Coordinates{Latitude: 45.42, Longitude: -75.69}}
		rec := serve(newTestServer(nil, lookup), http.MethodGet, "/v1/geocode?q=Ottawa", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var coords models.Coordinates
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &coords))
		assert.Equal(t, *lookup.coords, coords)
		assert.Equal(t, "Ottawa", lookup.lastQuery)
	})

	t.Run("geocode no match", func(t *testing.T) {
		rec := serve(newTestServer(nil, &fakeLookup{}), http.MethodGet, "/v1/geocode?q=nowhere", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"no match"}`, rec.Body.String())
	})

	t.Run("validation error", func(t *testing.T) {
		lookup := &fakeLookup{err: models.Validationf("query is empty")}
		rec := serve(newTestServer(nil, lookup), http.MethodGet, "/v1/geocode", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "query is empty")
	})

	t.Run("provider error", func(t *testing.T) {
		lookup := &fakeLookup{err: errors.New("upstream down")}
		rec := serve(newTestServer(nil, lookup), http.MethodGet, "/v1/geocode?q=Ottawa", "")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "upstream down")
	})

	t.Run("geocode structured address", func(t *testing.T) {
		lookup := &fakeLookup{coords: &models.Coordinates{Latitude: 43.65, Longitude: -79.38}}
		body := `{"street":"1 Main St","city":"Toronto","country":"CAN"}`
		rec := serve(newTestServer(nil, lookup), http.MethodPost, "/v1/geocode/address", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.Address{Street: "1 Main St", City: "Toronto", Country: "CAN"}, lookup.lastAddress)
	})

	t.Run("malformed address body", func(t *testing.T) {
		rec := serve(newTestServer(nil, &fakeLookup{}), http.MethodPost, "/v1/geocode/address", "{")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reverse geocode", func(t *testing.T) {
		lookup := &fakeLookup{address: &models.Address{Street: "1 Main St", City: "Ottawa"}}
		rec := serve(newTestServer(nil, lookup), http.MethodGet, "/v1/reverse?lat=45.5&lng=-75.25", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.Coordinates{Latitude: 45.5, Longitude: -75.25}, lookup.lastCoords)
		var address models.Address
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &address))
		assert.Equal(t, "Ottawa", address.City)
	})

	t.Run("reverse geocode with invalid coordinates", func(t *testing.T) {
		rec := serve(newTestServer(nil, &fakeLookup{}), http.MethodGet, "/v1/reverse?lat=north&lng=1", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("suggestions", func(t *testing.T) {
		lookup := &fakeLookup{suggestions: []string{"Ottawa, ON", "Ottawa, IL"}}
		rec := serve(newTestServer(nil, lookup), http.MethodGet, "/v1/suggest?q=otta", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `["Ottawa, ON","Ottawa, IL"]`, rec.Body.String())
	})

	t.Run("empty suggestions are an empty list", func(t *testing.T) {
		lookup := &fakeLookup{suggestions: []string{}}
		rec := serve(newTestServer(nil, lookup), http.MethodGet, "/v1/suggest?q=zzz", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}
