package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/models"
	"golang.org/x/time/rate"
)

// HERE search API endpoints.
const (
	HereGeocodeURL      = "https://geocode.search.hereapi.com/v1/geocode"
	HereReverseURL      = "https://revgeocode.search.hereapi.com/v1/revgeocode"
	HereAutocompleteURL = "https://autocomplete.search.hereapi.com/v1/autocomplete"
)

const errorBodyLimit = 512

// HereEndpoints holds the URLs of the HERE search endpoints. Tests point them at a local server.
type HereEndpoints struct {
	Geocode      string
	Reverse      string
	Autocomplete string
}

// DefaultHereEndpoints returns the public HERE search endpoints.
func DefaultHereEndpoints() HereEndpoints {
	return HereEndpoints{
		Geocode:      HereGeocodeURL,
		Reverse:      HereReverseURL,
		Autocomplete: HereAutocompleteURL,
	}
}

// HereProvider implements the Provider interface using the HERE search REST API.
type HereProvider struct {
	client    HTTPClient              // HTTP client for making requests
	endpoints HereEndpoints           // endpoints of the search API
	creds     models.CredentialSource // creds yields the API key, read once per request
	log       *slog.Logger            // logger for logging operations
	limiter   *rate.Limiter           // limiter bounds the request rate
}

type hereResponse struct {
	Items []hereItem `json:"items"`
}

type hereItem struct {
	Title    string      `json:"title"`
	Position *herePoint  `json:"position"`
	Address  hereAddress `json:"address"`
}

type herePoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type hereAddress struct {
	Label       string `json:"label"`
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
	State       string `json:"state"`
	StateCode   string `json:"stateCode"`
	City        string `json:"city"`
	District    string `json:"district"`
	Street      string `json:"street"`
	PostalCode  string `json:"postalCode"`
	HouseNumber string `json:"houseNumber"`
}

// NewHereProvider creates a HERE provider allowing rateLimit requests per second.
func NewHereProvider(creds models.CredentialSource, endpoints HereEndpoints, rateLimit int, log *slog.Logger) *HereProvider {
	const timeout = 10

	return &HereProvider{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		endpoints: endpoints,
		creds:     creds,
		log:       log,
		limiter:   rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
	}
}

// NewHereProviderWithClient allows injecting custom HTTP client and limiter.
func NewHereProviderWithClient(
	client HTTPClient,
	creds models.CredentialSource,
	endpoints HereEndpoints,
	limiter *rate.Limiter,
	log *slog.Logger,
) *HereProvider {
	return &HereProvider{
		client:    client,
		endpoints: endpoints,
		creds:     creds,
		log:       log,
		limiter:   limiter,
	}
}

// Geocode resolves a free-form query.
func (hp *HereProvider) Geocode(ctx context.Context, query string) (*models.Coordinates, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.Validationf("query is required")
	}

	hp.log.DebugContext(ctx, "Geocoding using HERE", "query", query)

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "1")

	return hp.geocode(ctx, params)
}

// GeocodeAddress resolves a structured address through a qualified query.
func (hp *HereProvider) GeocodeAddress(ctx context.Context, address models.Address) (*models.Coordinates, error) {
	qq := qualifiedQuery(address)
	if qq == "" {
		return nil, models.Validationf("address has no fields to search by")
	}

	hp.log.DebugContext(ctx, "Geocoding address using HERE", "qq", qq)

	params := url.Values{}
	params.Set("qq", qq)
	params.Set("limit", "1")

	return hp.geocode(ctx, params)
}

// ReverseGeocode returns the address nearest to coords.
func (hp *HereProvider) ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.Address, error) {
	if coords.IsEmpty() {
		return nil, models.Validationf("coordinates are empty")
	}

	params := url.Values{}
	params.Set("at", formatFloat(coords.Latitude)+","+formatFloat(coords.Longitude))
	params.Set("limit", "1")

	result, err := hp.get(ctx, "reverse", hp.endpoints.Reverse, params)
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		hp.log.DebugContext(ctx, "HERE found no address", "lat", coords.Latitude, "lon", coords.Longitude)
		return nil, nil //nolint:nilnil // no match is not an error
	}

	src := result.Items[0].Address
	address := &models.Address{
		Street:      strings.TrimSpace(src.HouseNumber + " " + src.Street),
		City:        src.City,
		Region:      src.State,
		PostalCode:  src.PostalCode,
		Country:     src.CountryCode,
		HouseNumber: src.HouseNumber,
		StreetName:  src.Street,
		District:    src.District,
	}

	return address, nil
}

// Autocomplete returns address labels for a partial query. An empty country disables the filter.
func (hp *HereProvider) Autocomplete(ctx context.Context, query, country string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.Validationf("query is required")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	if country != "" {
		params.Set("in", "countryCode:"+country)
	}

	result, err := hp.get(ctx, "autocomplete", hp.endpoints.Autocomplete, params)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Address.Label != "" {
			labels = append(labels, item.Address.Label)
		}
	}

	return labels, nil
}

func (hp *HereProvider) geocode(ctx context.Context, params url.Values) (*models.Coordinates, error) {
	result, err := hp.get(ctx, "geocode", hp.endpoints.Geocode, params)
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		hp.log.DebugContext(ctx, "HERE found no match")
		return nil, nil //nolint:nilnil // no match is not an error
	}

	position := result.Items[0].Position
	if position == nil {
		return nil, models.Providerf("geocode item %q has no position", result.Items[0].Title)
	}

	hp.log.DebugContext(ctx, "HERE found result", "lat", position.Lat, "lon", position.Lng)

	return &models.Coordinates{Latitude: position.Lat, Longitude: position.Lng}, nil
}

// get performs one rate-limited GET request and decodes the item list.
func (hp *HereProvider) get(ctx context.Context, op, endpoint string, params url.Values) (*hereResponse, error) {
	if err := hp.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	key, err := hp.creds.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider credentials: %w", err)
	}

	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	params.Set("apiKey", key)
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hp.client.Do(req)
	if err != nil {
		return nil, &models.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		hp.log.ErrorContext(ctx, "HERE API error", "operation", op, "status", resp.StatusCode)
		if len(body) > errorBodyLimit {
			body = body[:errorBodyLimit]
		}
		return nil, &models.TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err != nil {
		return nil, &models.TransportError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var result hereResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, models.Providerf("failed to decode %s response: %v", op, err)
	}

	return &result, nil
}

// qualifiedQuery builds a HERE qualified query from the non-empty address fields.
func qualifiedQuery(address models.Address) string {
	street := address.StreetName
	if street == "" {
		street = address.Street
	}

	parts := []struct{ key, value string }{
		{"houseNumber", address.HouseNumber},
		{"street", street},
		{"city", address.City},
		{"district", address.District},
		{"state", address.Region},
		{"country", address.Country},
		{"postalCode", address.PostalCode},
	}

	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part.value); value != "" {
			fields = append(fields, part.key+"="+value)
		}
	}

	return strings.Join(fields, ";")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
