package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the service, e.g. CARTOGRAPH_BATCH_SIZE.
const EnvPrefix = "CARTOGRAPH"

// configFileEnv names the optional YAML config file. Environment variables override its values.
const configFileEnv = EnvPrefix + "_CONFIG"

// Config holds the configuration settings for the geocoding service.
type Config struct {
	Env           string        // Env is the current environment: local, dev, prod.
	Port          int           // Port is the monitoring server port.
	ProviderType  string        // ProviderType selects the single-item provider: here, google.
	GoogleAPIKey  string        // GoogleAPIKey is required by the google provider.
	RateLimit     int           // RateLimit caps single-item provider requests per second.
	Here          HereConfig    // Here holds the HERE endpoints.
	Batch         BatchConfig   // Batch holds the batch job settings.
	Interval      time.Duration // Interval between service ticks.
	CacheCapacity int           // CacheCapacity bounds each lookup cache.
	Country       CountryConfig // Country holds the default and suggestion countries.
	Database      PostgresConfig
	Kafka         KafkaConfig

	v *viper.Viper
}

// HereConfig holds the HERE API endpoints.
type HereConfig struct {
	BatchURL        string
	GeocodeURL      string
	ReverseURL      string
	AutocompleteURL string
}

// BatchConfig holds the batch job lifecycle settings.
type BatchConfig struct {
	PollInterval  time.Duration // PollInterval between job status polls.
	RetryAttempts int           // RetryAttempts for submissions and downloads, negative disables retries.
	RetryDelay    time.Duration // RetryDelay between retries.
	JobTimeout    time.Duration // JobTimeout bounds one batch call, zero means unbounded.
	Size          int           // Size is the maximum number of tasks per batch job.
}

// CountryConfig holds country codes in the formats the providers expect.
type CountryConfig struct {
	Default    string // Default fills addresses without a country.
	Suggestion string // Suggestion restricts autocomplete results.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

// KafkaConfig holds the event publisher settings. Publishing is disabled without brokers.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

var defaults = map[string]any{
	"env":                   "production",
	"monitoring.port":       "8080",
	"provider.type":         "here",
	"provider.google_key":   "",
	"provider.rate_limit":   "5",
	"here.api_key":          "",
	"here.batch_url":        "https://batch.geocoder.ls.hereapi.com/6.2",
	"here.geocode_url":      "https://geocode.search.hereapi.com/v1/geocode",
	"here.revgeocode_url":   "https://revgeocode.search.hereapi.com/v1/revgeocode",
	"here.autocomplete_url": "https://autocomplete.search.hereapi.com/v1/autocomplete",
	"batch.poll_interval":   "5s",
	"batch.retry_attempts":  "5",
	"batch.retry_delay":     "600ms",
	"batch.job_timeout":     "30m",
	"batch.size":            "1000",
	"service.interval":      "10m",
	"cache.capacity":        "1000",
	"country.default":       "CAN",
	"country.suggestion":    "CAN",
	"postgres.host":         "",
	"postgres.port":         "5432",
	"postgres.user":         "",
	"postgres.password":     "",
	"postgres.db_name":      "",
	"kafka.brokers":         "",
	"kafka.topic":           "geocoding.tasks",
}

// MustLoad reads the configuration from the environment and the optional config file.
// It panics when a value cannot be parsed.
func MustLoad() *Config {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path := os.Getenv(configFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read config file: " + err.Error())
		}
	}

	return &Config{
		Env:          v.GetString("env"),
		Port:         mustInt(v, "monitoring.port", "failed to parse port for monitoring server from configuration"),
		ProviderType: v.GetString("provider.type"),
		GoogleAPIKey: v.GetString("provider.google_key"),
		RateLimit:    mustInt(v, "provider.rate_limit", "failed to parse provider rate limit, must be an integer"),
		Here: HereConfig{
			BatchURL:        v.GetString("here.batch_url"),
			GeocodeURL:      v.GetString("here.geocode_url"),
			ReverseURL:      v.GetString("here.revgeocode_url"),
			AutocompleteURL: v.GetString("here.autocomplete_url"),
		},
		Batch: BatchConfig{
			PollInterval:  mustDuration(v, "batch.poll_interval", "failed to parse batch poll interval from configuration"),
			RetryAttempts: mustInt(v, "batch.retry_attempts", "failed to parse batch retry attempts, must be an integer"),
			RetryDelay:    mustDuration(v, "batch.retry_delay", "failed to parse batch retry delay from configuration"),
			JobTimeout:    mustDuration(v, "batch.job_timeout", "failed to parse batch job timeout from configuration"),
			Size:          mustInt(v, "batch.size", "failed to parse batch size, must be an integer"),
		},
		Interval:      mustDuration(v, "service.interval", "failed to parse interval from configuration"),
		CacheCapacity: mustInt(v, "cache.capacity", "failed to parse cache capacity, must be an integer"),
		Country: CountryConfig{
			Default:    v.GetString("country.default"),
			Suggestion: v.GetString("country.suggestion"),
		},
		Database: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Name:     v.GetString("postgres.db_name"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.Get("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		v: v,
	}
}

// HereCredentials returns a credential source reading the HERE API key on every call.
func (c *Config) HereCredentials() *EnvCredentials {
	return &EnvCredentials{v: c.v}
}

// ErrMissingAPIKey is returned when no HERE API key is configured.
var ErrMissingAPIKey = errors.New("HERE API key is not configured")

// EnvCredentials reads the HERE API key from the configuration each time it is asked,
// so a key rotated in the environment is picked up without a restart.
type EnvCredentials struct {
	v *viper.Viper
}

// APIKey returns the configured HERE API key.
func (e *EnvCredentials) APIKey(_ context.Context) (string, error) {
	key := strings.TrimSpace(e.v.GetString("here.api_key"))
	if key == "" {
		return "", ErrMissingAPIKey
	}

	return key, nil
}

func mustInt(v *viper.Viper, key, msg string) int {
	value, err := cast.ToIntE(v.Get(key))
	if err != nil {
		panic(msg)
	}

	return value
}

func mustDuration(v *viper.Viper, key, msg string) time.Duration {
	value, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		panic(msg)
	}

	return value
}

// splitList accepts a YAML list or a comma separated string.
func splitList(value any) []string {
	var items []string
	switch typed := value.(type) {
	case string:
		items = strings.Split(typed, ",")
	default:
		items = cast.ToStringSlice(typed)
	}

	list := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}

	return list
}
