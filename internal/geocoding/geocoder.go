package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/models"
)

// SuggestionLimit is the maximum number of suggestions returned for one query.
const SuggestionLimit = 5

// GeoCoder answers single-item lookups through a Provider, caching query results.
type GeoCoder struct {
	provider    Provider
	coordinates *LookupCache[models.Coordinates]
	suggestions *LookupCache[[]string]
	country     string
	log         *slog.Logger
}

// NewGeoCoder creates a single-item geocoder. Each of its two caches holds up to cacheCapacity
// entries; country restricts suggestions.
func NewGeoCoder(
	provider Provider,
	cacheCapacity int,
	country string,
	log *slog.Logger,
	m *metrics.Metrics,
) (*GeoCoder, error) {
	coordinates, err := NewLookupCache[models.Coordinates]("coordinates", cacheCapacity, m)
	if err != nil {
		return nil, err
	}
	suggestions, err := NewLookupCache[[]string]("suggestions", cacheCapacity, m)
	if err != nil {
		return nil, err
	}

	return &GeoCoder{
		provider:    provider,
		coordinates: coordinates,
		suggestions: suggestions,
		country:     country,
		log:         log,
	}, nil
}

// CoordinatesFromAddress geocodes a structured address. Results are not cached.
// A nil result with a nil error means no match.
func (g *GeoCoder) CoordinatesFromAddress(ctx context.Context, address models.Address) (*models.Coordinates, error) {
	coords, err := g.provider.GeocodeAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}
	if coords == nil || coords.IsEmpty() {
		g.log.DebugContext(ctx, "No coordinates found for address", "address", address)
		return nil, nil //nolint:nilnil // no match is not an error
	}

	return coords, nil
}

// CoordinatesFromQuery geocodes a free-form query, serving repeated queries from the cache.
// Only non-empty matches are cached. A nil result with a nil error means no match.
func (g *GeoCoder) CoordinatesFromQuery(ctx context.Context, query string) (*models.Coordinates, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.Validationf("query is required")
	}

	coords, err := g.coordinates.GetOrLoad(ctx, query, func(ctx context.Context) (models.Coordinates, bool, error) {
		found, errGeocode := g.provider.Geocode(ctx, query)
		if errGeocode != nil || found == nil {
			return models.Coordinates{}, false, errGeocode
		}

		return *found, !found.IsEmpty(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to geocode query: %w", err)
	}
	if coords.IsEmpty() {
		g.log.DebugContext(ctx, "No coordinates found for query", "query", query)
		return nil, nil //nolint:nilnil // no match is not an error
	}

	return &coords, nil
}

// AddressFromCoordinates returns the address nearest to coords. Results are not cached.
func (g *GeoCoder) AddressFromCoordinates(ctx context.Context, coords models.Coordinates) (*models.Address, error) {
	if coords.IsEmpty() {
		return nil, models.Validationf("coordinates are empty")
	}

	address, err := g.provider.ReverseGeocode(ctx, coords)
	if err != nil {
		return nil, fmt.Errorf("failed to reverse geocode: %w", err)
	}

	return address, nil
}

// SuggestionsFromQuery returns up to SuggestionLimit address labels for a partial query.
// Results are cached even when empty.
func (g *GeoCoder) SuggestionsFromQuery(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.Validationf("query is required")
	}

	suggestions, err := g.suggestions.GetOrLoad(ctx, query, func(ctx context.Context) ([]string, bool, error) {
		found, errAutocomplete := g.provider.Autocomplete(ctx, query, g.country, SuggestionLimit)
		if errAutocomplete != nil {
			return nil, false, errAutocomplete
		}
		if found == nil {
			found = []string{}
		}

		return found, true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}

	return slices.Clone(suggestions), nil
}
