package geocoding

import (
	"context"
	"net/http"

	"github.com/UnknownOlympus/cartograph/internal/models"
)

// Provider is a single-item geocoding backend.
//
// A lookup that completes but finds nothing returns a nil result and a nil error,
// which is distinct from a failed lookup.
type Provider interface {
	// Geocode resolves a free-form query to the coordinates of the best match.
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
	// GeocodeAddress resolves a structured address to the coordinates of the best match.
	GeocodeAddress(ctx context.Context, address models.Address) (*models.Coordinates, error)
	// ReverseGeocode returns the address closest to the given coordinates.
	ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.Address, error)
	// Autocomplete returns up to limit address labels matching the query within a country.
	Autocomplete(ctx context.Context, query, country string, limit int) ([]string, error)
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
