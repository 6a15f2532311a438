package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Lookup answers single-item geocoding requests.
type Lookup interface {
	CoordinatesFromAddress(ctx context.Context, address models.Address) (*models.Coordinates, error)
	CoordinatesFromQuery(ctx context.Context, query string) (*models.Coordinates, error)
	AddressFromCoordinates(ctx context.Context, coords models.Coordinates) (*models.Address, error)
	SuggestionsFromQuery(ctx context.Context, query string) ([]string, error)
}

// Server exposes health, metrics and lookup HTTP endpoints.
type Server struct {
	httpServer *http.Server
	db         Pinger
	lookup     Lookup
	log        *slog.Logger
}

// New creates the monitoring server. The lookup routes are registered only when lookup is not nil.
func New(port int, reg prometheus.Gatherer, db Pinger, lookup Lookup, log *slog.Logger) *Server {
	const (
		readTimeout  = 5 * time.Second
		writeTimeout = 10 * time.Second
	)

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         ":" + strconv.Itoa(port),
			Handler:      mux,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		db:     db,
		lookup: lookup,
		log:    log,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if lookup != nil {
		mux.HandleFunc("GET /v1/geocode", s.handleGeocode)
		mux.HandleFunc("POST /v1/geocode/address", s.handleGeocodeAddress)
		mux.HandleFunc("GET /v1/reverse", s.handleReverse)
		mux.HandleFunc("GET /v1/suggest", s.handleSuggest)
	}

	return s
}

// Start listens until Shutdown is called. It returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("Starting monitoring server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains open connections within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.log.DebugContext(ctx, "Performing health checks...")

	status, body := http.StatusOK, "OK"
	if err := s.db.Ping(ctx); err != nil {
		status, body = http.StatusServiceUnavailable, "DB ping failed"
	}
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		s.log.ErrorContext(ctx, "failed to write reply", "error", err)
	}

	s.log.DebugContext(ctx, "Health checks completed", "status", status)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	coords, err := s.lookup.CoordinatesFromQuery(r.Context(), r.URL.Query().Get("q"))
	s.reply(w, r, coords, coords == nil, err)
}

func (s *Server) handleGeocodeAddress(w http.ResponseWriter, r *http.Request) {
	var address models.Address
	if err := json.NewDecoder(r.Body).Decode(&address); err != nil {
		s.reply(w, r, nil, false, models.Validationf("invalid address body: %v", err))
		return
	}

	coords, err := s.lookup.CoordinatesFromAddress(r.Context(), address)
	s.reply(w, r, coords, coords == nil, err)
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	lat, latErr := strconv.ParseFloat(query.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(query.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		s.reply(w, r, nil, false, models.Validationf("lat and lng must be numbers"))
		return
	}

	address, err := s.lookup.AddressFromCoordinates(r.Context(), models.Coordinates{Latitude: lat, Longitude: lng})
	s.reply(w, r, address, address == nil, err)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.lookup.SuggestionsFromQuery(r.Context(), r.URL.Query().Get("q"))
	s.reply(w, r, suggestions, false, err)
}

// reply writes the lookup result as JSON. Validation errors map to 400, no match to 404 and
// every other failure to 502.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, value any, notFound bool, err error) {
	status := http.StatusOK
	switch {
	case errors.Is(err, models.ErrValidation):
		status, value = http.StatusBadRequest, map[string]string{"error": err.Error()}
	case err != nil:
		s.log.ErrorContext(r.Context(), "Lookup failed", "path", r.URL.Path, "error", err)
		status, value = http.StatusBadGateway, map[string]string{"error": "lookup failed"}
	case notFound:
		status, value = http.StatusNotFound, map[string]string{"error": "no match"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(value); encErr != nil {
		s.log.ErrorContext(r.Context(), "failed to write reply", "error", encErr)
	}
}
