package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/UnknownOlympus/cartograph/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding and places services.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

// GoogleAPIClient is the subset of *maps.Client used by GoogleProvider.
type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	PlaceAutocomplete(ctx context.Context, r *maps.PlaceAutocompleteRequest) (maps.AutocompleteResponse, error)
}

// NewGoogleProvider wraps a Google Maps API client.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Geocode takes a context and a free-form query, and returns the geographical coordinates
// of the best match using the Google Maps Geocoding API.
func (gp *GoogleProvider) Geocode(ctx context.Context, query string) (*models.Coordinates, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.Validationf("query is required")
	}

	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "query", query)

	return gp.geocode(ctx, &maps.GeocodingRequest{Address: query})
}

// GeocodeAddress geocodes the street line and narrows the match with component filters.
func (gp *GoogleProvider) GeocodeAddress(ctx context.Context, address models.Address) (*models.Coordinates, error) {
	components := make(map[maps.Component]string)
	for component, value := range map[maps.Component]string{
		maps.ComponentLocality:           address.City,
		maps.ComponentAdministrativeArea: address.Region,
		maps.ComponentPostalCode:         address.PostalCode,
		maps.ComponentCountry:            address.Country,
	} {
		if value != "" {
			components[component] = value
		}
	}

	street := address.StreetLine()
	if street == "" && len(components) == 0 {
		return nil, models.Validationf("address has no fields to search by")
	}

	gp.log.DebugContext(ctx, "Geocoding address using Google Maps", "street", street)

	return gp.geocode(ctx, &maps.GeocodingRequest{Address: street, Components: components})
}

// ReverseGeocode returns the address of the first result for the given point.
func (gp *GoogleProvider) ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.Address, error) {
	if coords.IsEmpty() {
		return nil, models.Validationf("coordinates are empty")
	}

	results, err := gp.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: coords.Latitude, Lng: coords.Longitude},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reverse geocode coordinates: %w", err)
	}
	if len(results) == 0 {
		return nil, nil //nolint:nilnil // no match is not an error
	}

	address := &models.Address{}
	for _, component := range results[0].AddressComponents {
		switch {
		case hasType(component, "street_number"):
			address.HouseNumber = component.LongName
		case hasType(component, "route"):
			address.StreetName = component.LongName
		case hasType(component, "locality"):
			address.City = component.LongName
		case hasType(component, "sublocality"), hasType(component, "neighborhood"):
			address.District = component.LongName
		case hasType(component, "administrative_area_level_1"):
			address.Region = component.ShortName
		case hasType(component, "postal_code"):
			address.PostalCode = component.LongName
		case hasType(component, "country"):
			address.Country = component.ShortName
		}
	}
	address.Street = strings.TrimSpace(address.HouseNumber + " " + address.StreetName)

	return address, nil
}

// Autocomplete returns place predictions restricted to country, capped to limit.
func (gp *GoogleProvider) Autocomplete(ctx context.Context, query, country string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.Validationf("query is required")
	}

	req := &maps.PlaceAutocompleteRequest{Input: query}
	if country != "" {
		req.Components = map[maps.Component][]string{maps.ComponentCountry: {country}}
	}

	response, err := gp.client.PlaceAutocomplete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to autocomplete query: %w", err)
	}

	suggestions := make([]string, 0, min(len(response.Predictions), limit))
	for _, prediction := range response.Predictions {
		if len(suggestions) == limit {
			break
		}
		suggestions = append(suggestions, prediction.Description)
	}

	return suggestions, nil
}

func (gp *GoogleProvider) geocode(ctx context.Context, req *maps.GeocodingRequest) (*models.Coordinates, error) {
	geocodeResponse, err := gp.client.Geocode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}

	if len(geocodeResponse) == 0 {
		return nil, nil //nolint:nilnil // no match is not an error
	}
	coords := geocodeResponse[0].Geometry.Location

	return &models.Coordinates{Longitude: coords.Lng, Latitude: coords.Lat}, nil
}

func hasType(component maps.AddressComponent, want string) bool {
	for _, t := range component.Types {
		if t == want {
			return true
		}
	}

	return false
}
