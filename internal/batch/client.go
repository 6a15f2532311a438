package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

// Defaults for the HERE batch geocoder API.
const (
	DefaultBaseURL       = "https://batch.geocoder.ls.hereapi.com/6.2"
	DefaultPollInterval  = 5 * time.Second
	DefaultRetryAttempts = 5
	DefaultRetryDelay    = 600 * time.Millisecond
	DefaultLanguage      = "en"

	// InputDelimiter separates fields of the submitted address table.
	InputDelimiter = '|'
	// OutputDelimiter separates fields of the downloaded result table.
	OutputDelimiter = ','

	errorBodyLimit = 512
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig tunes the batch job client. Zero values fall back to the defaults above;
// a negative RetryAttempts disables retries.
type ClientConfig struct {
	BaseURL       string        // BaseURL of the batch API, without trailing slash.
	PollInterval  time.Duration // PollInterval between two job status requests.
	RetryAttempts int           // RetryAttempts for submission and download; polls never retry.
	RetryDelay    time.Duration // RetryDelay is the fixed wait between two attempts.
	Language      string        // Language of the geocoded results.
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	switch {
	case cfg.RetryAttempts == 0:
		cfg.RetryAttempts = DefaultRetryAttempts
	case cfg.RetryAttempts < 0:
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}

	return cfg
}

// Client drives a batch job through submission, status polling and result download.
type Client struct {
	http    HTTPClient
	clock   clockwork.Clock
	creds   models.CredentialSource
	cfg     ClientConfig
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a batch client using a default HTTP client and the real clock.
func NewClient(creds models.CredentialSource, cfg ClientConfig, log *slog.Logger, m *metrics.Metrics) *Client {
	const timeout = 60

	return NewClientWithHTTP(&http.Client{Timeout: timeout * time.Second}, clockwork.NewRealClock(), creds, cfg, log, m)
}

// NewClientWithHTTP creates a batch client with an injected HTTP client and clock.
func NewClientWithHTTP(
	httpClient HTTPClient,
	clock clockwork.Clock,
	creds models.CredentialSource,
	cfg ClientConfig,
	log *slog.Logger,
	m *metrics.Metrics,
) *Client {
	return &Client{
		http:    httpClient,
		clock:   clock,
		creds:   creds,
		cfg:     cfg.withDefaults(),
		log:     log,
		metrics: m,
	}
}

// Submit uploads the encoded address table and returns the provider job identifier.
// Transient failures are retried according to the client configuration.
func (c *Client) Submit(ctx context.Context, payload []byte) (string, error) {
	key, err := c.creds.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get provider credentials: %w", err)
	}

	query := url.Values{}
	query.Set("apiKey", key)
	query.Set("action", "run")
	query.Set("header", "true")
	query.Set("inDelim", string(InputDelimiter))
	query.Set("outDelim", string(OutputDelimiter))
	query.Set("outCols", "latitude,longitude")
	query.Set("outputcombined", "true")
	query.Set("language", c.cfg.Language)
	endpoint := c.cfg.BaseURL + "/jobs?" + query.Encode()

	body, err := c.doWithRetry(ctx, "submit", func() (*http.Request, error) {
		req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if errReq != nil {
			return nil, errReq
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")

		return req, nil
	})
	if err != nil {
		return "", err
	}

	jobID, err := firstElementText(bytes.NewReader(body), "RequestId")
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}

	c.log.InfoContext(ctx, "Batch job submitted", "job_id", jobID, "payload_bytes", len(payload))

	return jobID, nil
}

// AwaitCompletion polls the job status until a terminal status is observed or ctx is done.
// A failed poll is returned immediately; it is not retried.
func (c *Client) AwaitCompletion(ctx context.Context, jobID string) (Status, error) {
	if jobID == "" {
		return "", models.Validationf("job id is required")
	}

	key, err := c.creds.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get provider credentials: %w", err)
	}

	var status Status
	err = pollUntil(ctx, c.clock, c.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		current, errPoll := c.pollStatus(ctx, key, jobID)
		if errPoll != nil {
			return false, errPoll
		}
		status = current
		if status.Terminal() {
			c.log.InfoContext(ctx, "Batch job finished", "job_id", jobID, "status", status)
			return true, nil
		}
		c.log.DebugContext(ctx, "Batch job still in progress", "job_id", jobID, "status", status)

		return false, nil
	})
	if err != nil {
		return status, fmt.Errorf("waiting for job %s: %w", jobID, err)
	}

	return status, nil
}

// FetchResult downloads the job result archive and returns a reader over its single file.
// The caller must close the returned reader.
func (c *Client) FetchResult(ctx context.Context, jobID string) (io.ReadCloser, error) {
	key, err := c.creds.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider credentials: %w", err)
	}

	query := url.Values{}
	query.Set("apiKey", key)
	endpoint := fmt.Sprintf("%s/jobs/%s/result?%s", c.cfg.BaseURL, url.PathEscape(jobID), query.Encode())

	body, err := c.doWithRetry(ctx, "download", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, models.Providerf("result of job %s is not a zip archive: %v", jobID, err)
	}

	for _, file := range archive.File {
		if file.FileInfo().IsDir() {
			continue
		}
		entry, errOpen := file.Open()
		if errOpen != nil {
			return nil, models.Providerf("failed to open %s in result of job %s: %v", file.Name, jobID, errOpen)
		}
		c.log.DebugContext(ctx, "Batch result downloaded", "job_id", jobID, "file", file.Name, "bytes", len(body))

		return entry, nil
	}

	return nil, models.Providerf("result archive of job %s has no entries", jobID)
}

func (c *Client) pollStatus(ctx context.Context, key, jobID string) (Status, error) {
	query := url.Values{}
	query.Set("apiKey", key)
	query.Set("action", "status")
	endpoint := fmt.Sprintf("%s/jobs/%s?%s", c.cfg.BaseURL, url.PathEscape(jobID), query.Encode())

	c.metrics.BatchPolls.Inc()
	body, err := c.do(ctx, "status", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return "", err
	}

	status, err := firstElementText(bytes.NewReader(body), "Status")
	if err != nil {
		return "", fmt.Errorf("status: %w", err)
	}

	return Status(status), nil
}

// doWithRetry executes a request built by newReq, retrying transient failures with a fixed delay.
func (c *Client) doWithRetry(ctx context.Context, op string, newReq func() (*http.Request, error)) ([]byte, error) {
	var (
		body    []byte
		attempt int
	)

	operation := func() error {
		attempt++
		b, err := c.do(ctx, op, newReq)
		if err != nil {
			if isTransient(ctx, err) {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b

		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(c.cfg.RetryAttempts)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		c.log.WarnContext(ctx, "Transient provider failure, retrying",
			"operation", op, "attempt", attempt, "retry_in", next, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return body, nil
}

// do executes a single request and returns the full response body of a 2xx response.
func (c *Client) do(ctx context.Context, op string, newReq func() (*http.Request, error)) ([]byte, error) {
	req, err := newReq()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	startTime := c.clock.Now()
	resp, err := c.http.Do(req)
	c.metrics.RequestSeconds.WithLabelValues(op).Observe(c.clock.Since(startTime).Seconds())
	if err != nil {
		c.metrics.APIErrors.Inc()
		return nil, &models.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.metrics.APIErrors.Inc()
		c.log.ErrorContext(ctx, "Batch API error", "operation", op, "status", resp.StatusCode)
		return nil, &models.TransportError{Op: op, StatusCode: resp.StatusCode, Body: truncate(body, errorBodyLimit)}
	}
	if err != nil {
		return nil, &models.TransportError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return body, nil
}

// isTransient reports whether err is worth another attempt: connection failures,
// per-attempt timeouts, throttling and server errors. Nothing is retried once ctx is done.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var terr *models.TransportError
	if !errors.As(err, &terr) {
		return false
	}
	if terr.StatusCode == 0 {
		return true
	}

	return terr.StatusCode == http.StatusRequestTimeout ||
		terr.StatusCode == http.StatusTooManyRequests ||
		terr.StatusCode >= http.StatusInternalServerError
}

// pollUntil calls check every interval until it reports done, returns an error, or ctx ends.
func pollUntil(
	ctx context.Context,
	clock clockwork.Clock,
	interval time.Duration,
	check func(ctx context.Context) (bool, error),
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := check(ctx)
		if err != nil || done {
			return err
		}

		timer := clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}
	}
}

// firstElementText returns the trimmed text of the first XML element with the given local name.
func firstElementText(r io.Reader, name string) (string, error) {
	decoder := xml.NewDecoder(r)
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return "", models.Providerf("response has no %s element", name)
		}
		if err != nil {
			return "", models.Providerf("failed to decode XML response: %v", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != name {
			continue
		}

		var text string
		if err = decoder.DecodeElement(&text, &start); err != nil {
			return "", models.Providerf("failed to read %s element: %v", name, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", models.Providerf("%s element is empty", name)
		}

		return text, nil
	}
}

func truncate(body []byte, limit int) string {
	if len(body) > limit {
		return string(body[:limit])
	}

	return string(body)
}
