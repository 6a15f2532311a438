package geocoding

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/cartograph/internal/models"
	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeHere represents the HERE search API.
	ProviderTypeHere ProviderType = "here"
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
)

// defaultHereRateLimit is applied when no HERE rate limit is configured.
const defaultHereRateLimit = 5

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type      ProviderType            // Type of provider to create
	APIKey    string                  // API key (used by Google provider)
	Creds     models.CredentialSource // Credential source (used by HERE provider)
	Endpoints HereEndpoints           // HERE endpoints, defaults to the public ones
	RateLimit int                     // Rate limit for requests per second
	Logger    *slog.Logger            // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
//
// Supported provider types:
// - "here": HERE search API (requires a credential source)
// - "google": Google Maps Geocoding and Places APIs (requires API key)
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeHere:
		return newHereProvider(config)
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newHereProvider creates a HERE geocoding provider.
func newHereProvider(config ProviderConfig) (Provider, error) {
	if config.Creds == nil {
		return nil, errors.New("credential source is required for HERE provider")
	}

	if config.RateLimit == 0 {
		config.RateLimit = defaultHereRateLimit
		config.Logger.Warn("Rate limit for HERE API not set, set a default value", "value", config.RateLimit)
	}

	endpoints := config.Endpoints
	defaults := DefaultHereEndpoints()
	if endpoints.Geocode == "" {
		endpoints.Geocode = defaults.Geocode
	}
	if endpoints.Reverse == "" {
		endpoints.Reverse = defaults.Reverse
	}
	if endpoints.Autocomplete == "" {
		endpoints.Autocomplete = defaults.Autocomplete
	}

	return NewHereProvider(config.Creds, endpoints, config.RateLimit, config.Logger), nil
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}

	if config.RateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(config.RateLimit))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Logger), nil
}
