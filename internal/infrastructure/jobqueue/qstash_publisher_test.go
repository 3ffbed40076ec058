package jobqueue

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/resilience"
)

func TestQStashPublisher_EnqueueSendsPublishRequest(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotHeaders http.Header
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	publisher := NewQStashPublisher(QStashPublisherConfig{
		BaseURL:          srv.URL,
		Token:            "qstash-token",
		TargetBaseURL:    "https://roster.example.com/",
		Retries:          3,
		InternalJobToken: "internal-secret",
	}, nil, logging.NewNop())

	err := publisher.Enqueue(t.Context(), "/v1/internal/jobs/process-waivers", map[string]any{"league_id": "lg-1"}, 90*time.Second, "process-waivers-lg-1")
	require.NoError(t, err)

	assert.Equal(t, "/v2/publish/https://roster.example.com/v1/internal/jobs/process-waivers", gotPath)
	assert.Equal(t, "Bearer qstash-token", gotHeaders.Get("Authorization"))
	assert.Equal(t, "3", gotHeaders.Get("Upstash-Retries"))
	assert.Equal(t, "90s", gotHeaders.Get("Upstash-Delay"))
	assert.Equal(t, "process-waivers-lg-1", gotHeaders.Get("Upstash-Deduplication-Id"))
	assert.Equal(t, "internal-secret", gotHeaders.Get("Upstash-Forward-X-Internal-Job-Token"))
	assert.Equal(t, "lg-1", gotBody["league_id"])
}

func TestQStashPublisher_RejectsBadConfiguration(t *testing.T) {
	t.Parallel()

	publisher := NewQStashPublisher(QStashPublisherConfig{BaseURL: "ftp://qstash", TargetBaseURL: "https://roster.example.com"}, nil, logging.NewNop())
	err := publisher.Enqueue(t.Context(), "/v1/internal/jobs/lock-day", nil, 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QSTASH_BASE_URL")

	err = publisher.Enqueue(t.Context(), "  ", nil, 0, "")
	require.Error(t, err)
}

func TestQStashPublisher_BreakerOpensOnTransientFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := resilience.NewNamedCircuitBreaker("qstash", resilience.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		HalfOpenMaxReq:   1,
	}, nil)
	publisher := NewQStashPublisher(QStashPublisherConfig{BaseURL: srv.URL, TargetBaseURL: "https://roster.example.com"}, breaker, logging.NewNop())

	for range 2 {
		err := publisher.Enqueue(t.Context(), "/v1/internal/jobs/clear-waivers", nil, 0, "")
		require.Error(t, err)
		assert.True(t, isCircuitFailure(err))
	}

	err := publisher.Enqueue(t.Context(), "/v1/internal/jobs/clear-waivers", nil, 0, "")
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestQStashPublisher_ClientErrorsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	breaker := resilience.NewNamedCircuitBreaker("qstash", resilience.CircuitBreakerConfig{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Minute, HalfOpenMaxReq: 1}, nil)
	publisher := NewQStashPublisher(QStashPublisherConfig{BaseURL: srv.URL, TargetBaseURL: "https://roster.example.com"}, breaker, logging.NewNop())

	err := publisher.Enqueue(t.Context(), "/v1/internal/jobs/lock-day", nil, 0, "")
	require.Error(t, err)
	assert.False(t, isCircuitFailure(err))
	assert.Contains(t, err.Error(), "status=401")
	assert.Equal(t, resilience.CircuitStateClosed, breaker.State())
}

func TestCurlPreviewMasksSecrets(t *testing.T) {
	t.Parallel()

	preview := curlPreview(publishRequest{
		publishURL:      "https://qstash/v2/publish/https://roster/v1/internal/jobs/lock-day",
		body:            []byte(`{"league_id":"it's"}`),
		delay:           "30s",
		deduplicationID: "lock-day-1",
	}, 2, true)

	assert.True(t, strings.HasPrefix(preview, "curl -X POST 'https://qstash"))
	assert.Contains(t, preview, "'Authorization: Bearer ***'")
	assert.Contains(t, preview, "'Upstash-Forward-X-Internal-Job-Token: ***'")
	assert.Contains(t, preview, "'Upstash-Delay: 30s'")
	assert.Contains(t, preview, `it'"'"'s`)
}

func TestJobName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "lock-day", jobName("/v1/internal/jobs/lock-day/"))
	assert.Equal(t, "unknown", jobName(""))
}
