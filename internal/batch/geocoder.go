package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/google/uuid"
)

// ResolvedFunc receives the coordinates of one resolved request.
// It is awaited before the next result row is processed.
type ResolvedFunc func(ctx context.Context, id models.RequestID, coords models.Coordinates) error

// UnresolvedFunc receives every request that did not resolve to coordinates. It is called once.
type UnresolvedFunc func(ctx context.Context, ids []models.RequestID) error

// JobClient is the batch job lifecycle the GeoCoder drives.
type JobClient interface {
	Submit(ctx context.Context, payload []byte) (string, error)
	AwaitCompletion(ctx context.Context, jobID string) (Status, error)
	FetchResult(ctx context.Context, jobID string) (io.ReadCloser, error)
}

// Outcome summarizes one GeoCodeAddresses call.
type Outcome struct {
	BatchID    string // BatchID correlates log lines of one call.
	JobID      string // JobID is the provider job handle, empty if submission never succeeded.
	Status     Status // Status is the terminal job status, empty if the job was never awaited.
	Resolved   int
	Unresolved int
}

// GeoCoder geocodes address sets through a single provider batch job per call.
type GeoCoder struct {
	client         JobClient
	defaultCountry string
	log            *slog.Logger
	metrics        *metrics.Metrics
}

// NewGeoCoder creates a batch geocoder. defaultCountry replaces empty address countries.
func NewGeoCoder(client JobClient, defaultCountry string, log *slog.Logger, m *metrics.Metrics) *GeoCoder {
	return &GeoCoder{
		client:         client,
		defaultCountry: defaultCountry,
		log:            log,
		metrics:        m,
	}
}

// GeoCodeAddresses submits addresses as one batch job, waits for it and dispatches the results.
//
// onResolved is invoked once per resolved request in result order. onUnresolved is invoked once
// with every remaining request, even if there are none. When the job ends in any terminal status
// other than completed, neither callback runs and the returned error wraps ErrJobNotCompleted.
// An empty address set returns immediately without network activity or callbacks.
func (g *GeoCoder) GeoCodeAddresses(
	ctx context.Context,
	addresses map[models.RequestID]models.Address,
	onResolved ResolvedFunc,
	onUnresolved UnresolvedFunc,
) (Outcome, error) {
	switch {
	case addresses == nil:
		return Outcome{}, models.Validationf("addresses are required")
	case onResolved == nil:
		return Outcome{}, models.Validationf("resolved callback is required")
	case onUnresolved == nil:
		return Outcome{}, models.Validationf("unresolved callback is required")
	}

	outcome := Outcome{BatchID: uuid.NewString()}
	log := g.log.With("batch_id", outcome.BatchID)

	if len(addresses) == 0 {
		log.InfoContext(ctx, "Zero addresses were supplied, nothing to geocode")
		return outcome, nil
	}

	g.metrics.ActiveJobs.Inc()
	defer g.metrics.ActiveJobs.Dec()

	log.InfoContext(ctx, "Geocoding addresses", "count", len(addresses))

	jobID, err := g.client.Submit(ctx, EncodeAddresses(g.withDefaultCountry(addresses), InputDelimiter))
	if err != nil {
		g.metrics.BatchJobs.WithLabelValues("error").Inc()
		return outcome, fmt.Errorf("failed to submit batch job: %w", err)
	}
	outcome.JobID = jobID
	log = log.With("job_id", jobID)

	status, err := g.client.AwaitCompletion(ctx, jobID)
	outcome.Status = status
	if err != nil {
		g.metrics.BatchJobs.WithLabelValues("error").Inc()
		return outcome, fmt.Errorf("failed to await batch job: %w", err)
	}
	g.metrics.BatchJobs.WithLabelValues(string(status)).Inc()

	if !status.Succeeded() {
		log.ErrorContext(ctx, "Batch job finished but not completed", "status", status)
		return outcome, fmt.Errorf("%w: job %s finished with status %s", ErrJobNotCompleted, jobID, status)
	}

	log.InfoContext(ctx, "Batch job completed, downloading result")

	resolved, err := g.dispatchResults(ctx, log, jobID, addresses, onResolved)
	outcome.Resolved = len(resolved)
	g.metrics.BatchRows.WithLabelValues("resolved").Add(float64(len(resolved)))
	if err != nil {
		return outcome, err
	}

	unresolved := unresolvedIDs(addresses, resolved)
	outcome.Unresolved = len(unresolved)
	g.metrics.BatchRows.WithLabelValues("unresolved").Add(float64(len(unresolved)))

	log.InfoContext(ctx, "Batch results dispatched",
		"requested", len(addresses), "resolved", outcome.Resolved, "unresolved", outcome.Unresolved)

	if err = onUnresolved(ctx, unresolved); err != nil {
		return outcome, fmt.Errorf("unresolved callback failed: %w", err)
	}

	return outcome, nil
}

// dispatchResults decodes the job result and invokes onResolved for every resolved known request.
// It returns the set of requests the callback succeeded for, also on error.
func (g *GeoCoder) dispatchResults(
	ctx context.Context,
	log *slog.Logger,
	jobID string,
	addresses map[models.RequestID]models.Address,
	onResolved ResolvedFunc,
) (map[models.RequestID]struct{}, error) {
	resolved := make(map[models.RequestID]struct{}, len(addresses))

	result, err := g.client.FetchResult(ctx, jobID)
	if err != nil {
		return resolved, fmt.Errorf("failed to fetch result of job %s: %w", jobID, err)
	}
	defer result.Close()

	decoder := NewResultDecoder(result, OutputDelimiter)
	for {
		row, errRow := decoder.Next()
		if errors.Is(errRow, io.EOF) {
			return resolved, nil
		}
		if errRow != nil {
			return resolved, fmt.Errorf("failed to decode result of job %s: %w", jobID, errRow)
		}

		if _, known := addresses[row.ID]; !known {
			log.WarnContext(ctx, "Result row for unknown request skipped", "request_id", row.ID, "line", row.Line)
			continue
		}
		if !row.Resolved {
			log.WarnContext(ctx, "Couldn't get coordinates for request",
				"request_id", row.ID, "address", addresses[row.ID], "line", row.Line)
			continue
		}
		if _, done := resolved[row.ID]; done {
			log.DebugContext(ctx, "Additional match for request ignored", "request_id", row.ID, "line", row.Line)
			continue
		}

		if err = onResolved(ctx, row.ID, row.Coordinates); err != nil {
			return resolved, fmt.Errorf("resolved callback failed for %s: %w", row.ID, err)
		}
		resolved[row.ID] = struct{}{}
	}
}

func (g *GeoCoder) withDefaultCountry(addresses map[models.RequestID]models.Address) map[models.RequestID]models.Address {
	if g.defaultCountry == "" {
		return addresses
	}

	filled := make(map[models.RequestID]models.Address, len(addresses))
	for id, addr := range addresses {
		if addr.Country == "" {
			addr.Country = g.defaultCountry
		}
		filled[id] = addr
	}

	return filled
}

func unresolvedIDs(
	addresses map[models.RequestID]models.Address,
	resolved map[models.RequestID]struct{},
) []models.RequestID {
	ids := make([]models.RequestID, 0, len(addresses)-len(resolved))
	for id := range addresses {
		if _, ok := resolved[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
