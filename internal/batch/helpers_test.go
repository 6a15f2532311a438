package batch_test

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/batch"
	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey = "test-api-key"
	testJobID  = "job-42"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func testConfig(baseURL string) batch.ClientConfig {
	return batch.ClientConfig{
		BaseURL:       baseURL,
		PollInterval:  time.Millisecond,
		RetryAttempts: 5,
		RetryDelay:    time.Millisecond,
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, clock clockwork.Clock) *batch.Client {
	t.Helper()
	return batch.NewClientWithHTTP(srv.Client(), clock, models.StaticKey(testAPIKey), testConfig(srv.URL), discardLogger(), testMetrics())
}

// zipArchive packs files (name, content pairs) into an in-memory zip archive.
func zipArchive(t *testing.T, files ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for i := 0; i+1 < len(files); i += 2 {
		entry, err := writer.Create(files[i])
		require.NoError(t, err)
		_, err = entry.Write([]byte(files[i+1]))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return buf.Bytes()
}

func submitResponse(jobID string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<ns2:SearchBatch xmlns:ns2="http://www.navteq.com/lbsp/Search-Batch/1"><Response>` +
		`<MetaInfo><RequestId>` + jobID + `</RequestId></MetaInfo>` +
		`<Status>accepted</Status><TotalCount>0</TotalCount></Response></ns2:SearchBatch>`
}

func statusResponse(jobID, status string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<ns2:SearchBatch xmlns:ns2="http://www.navteq.com/lbsp/Search-Batch/1"><Response>` +
		`<MetaInfo><RequestId>` + jobID + `</RequestId></MetaInfo>` +
		`<Status>` + status + `</Status></Response></ns2:SearchBatch>`
}

// fakeBatchAPI simulates the provider batch endpoints.
type fakeBatchAPI struct {
	t *testing.T

	mu        sync.Mutex
	statuses  []string // statuses returned by consecutive polls; the last one repeats
	submits   int
	polls     int
	downloads int

	submitFailures   int // number of 503 responses before a submission succeeds
	submitStatus     int // when set, every submission fails with this status
	submitBody       string
	pollStatus       int // when set, every poll fails with this status
	downloadFailures int
	result           []byte
	echo             func(payload string) string // builds the result file from the submitted payload

	payload     string
	submitQuery url.Values
}

func newFakeBatchAPI(t *testing.T, statuses ...string) *fakeBatchAPI {
	t.Helper()
	return &fakeBatchAPI{t: t, statuses: statuses}
}

func (f *fakeBatchAPI) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.submits, f.polls, f.downloads
}

func (f *fakeBatchAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Query().Get("apiKey") != testAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/jobs":
		f.handleSubmit(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/result"):
		f.handleDownload(w)
	case r.Method == http.MethodGet && r.URL.Query().Get("action") == "status":
		f.handlePoll(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeBatchAPI) handleSubmit(w http.ResponseWriter, r *http.Request) {
	f.submits++
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.payload = string(body)
	f.submitQuery = r.URL.Query()

	if f.submitStatus != 0 {
		w.WriteHeader(f.submitStatus)
		return
	}
	if f.submits <= f.submitFailures {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	response := f.submitBody
	if response == "" {
		response = submitResponse(testJobID)
	}
	_, _ = w.Write([]byte(response))
}

func (f *fakeBatchAPI) handlePoll(w http.ResponseWriter, r *http.Request) {
	f.polls++
	if f.pollStatus != 0 {
		w.WriteHeader(f.pollStatus)
		return
	}
	if r.URL.Path != "/jobs/"+testJobID {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	idx := min(f.polls-1, len(f.statuses)-1)
	_, _ = fmt.Fprint(w, statusResponse(testJobID, f.statuses[idx]))
}

func (f *fakeBatchAPI) handleDownload(w http.ResponseWriter) {
	f.downloads++
	if f.downloads <= f.downloadFailures {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	result := f.result
	if f.echo != nil {
		result = zipArchive(f.t, "result.txt", f.echo(f.payload))
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(result)
}
