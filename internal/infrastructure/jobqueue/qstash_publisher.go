package jobqueue

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/metrics"
	"github.com/riskibarqy/fantasy-roster/internal/platform/resilience"
)

var errQStashTransient = errors.New("qstash transient failure")

type QStashPublisherConfig struct {
	BaseURL          string
	Token            string
	TargetBaseURL    string
	Retries          int
	InternalJobToken string
	Timeout          time.Duration
}

// QStashPublisher schedules internal job callbacks through the QStash
// publish API. The callback reaches this service again on
// TargetBaseURL+path carrying the internal job token.
type QStashPublisher struct {
	client           *http.Client
	baseURL          string
	token            string
	targetBaseURL    string
	retries          int
	internalJobToken string
	breaker          *resilience.CircuitBreaker
	logger           *logging.Logger
}

// NewQStashPublisher accepts a nil breaker, which disables short-circuiting.
func NewQStashPublisher(cfg QStashPublisherConfig, breaker *resilience.CircuitBreaker, logger *logging.Logger) *QStashPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &QStashPublisher{
		client:           &http.Client{Timeout: timeout},
		baseURL:          strings.TrimSpace(cfg.BaseURL),
		token:            strings.TrimSpace(cfg.Token),
		targetBaseURL:    strings.TrimSpace(cfg.TargetBaseURL),
		retries:          cfg.Retries,
		internalJobToken: strings.TrimSpace(cfg.InternalJobToken),
		breaker:          breaker,
		logger:           logger,
	}
}

type publishRequest struct {
	path            string
	publishURL      string
	targetURL       string
	body            []byte
	delay           string
	deduplicationID string
}

func (p *QStashPublisher) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	job := jobName(path)
	err := p.enqueue(ctx, path, payload, delay, deduplicationID)
	metrics.JobsEnqueuedTotal.WithLabelValues(job, metrics.Outcome(err)).Inc()
	return err
}

func (p *QStashPublisher) enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	if err := p.breaker.Allow(); err != nil {
		p.logger.WarnContext(ctx, "qstash circuit breaker rejected request", "state", p.breaker.State())
		return errors.Wrap(err, "qstash is temporarily unavailable")
	}

	req, err := p.buildRequest(path, payload, delay, deduplicationID)
	if err != nil {
		return err
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("qstash.target_url", req.targetURL),
			attribute.String("qstash.path", req.path),
			attribute.String("qstash.deduplication_id", req.deduplicationID),
		)
	}

	err = p.send(ctx, req)
	p.breaker.Record(err, isCircuitFailure)
	if err != nil {
		p.logger.WarnContext(ctx, "qstash publish failed",
			"path", req.path,
			"curl_preview", curlPreview(req, p.retries, p.internalJobToken != ""),
			"error", err,
		)
		return err
	}

	p.logger.InfoContext(ctx, "qstash job published", "path", req.path, "delay", req.delay, "deduplication_id", req.deduplicationID)
	return nil
}

func (p *QStashPublisher) buildRequest(path string, payload any, delay time.Duration, deduplicationID string) (publishRequest, error) {
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "/" {
		return publishRequest{}, errors.New("job path is required")
	}

	baseURL, err := validateHTTPBaseURL(p.baseURL)
	if err != nil {
		return publishRequest{}, errors.Wrap(err, "invalid QSTASH_BASE_URL")
	}
	targetBaseURL, err := validateHTTPBaseURL(p.targetBaseURL)
	if err != nil {
		return publishRequest{}, errors.Wrap(err, "invalid QSTASH_TARGET_BASE_URL")
	}

	if payload == nil {
		payload = map[string]any{}
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return publishRequest{}, errors.Wrap(err, "marshal job payload")
	}

	targetURL := targetBaseURL + path
	return publishRequest{
		path:            path,
		publishURL:      baseURL + "/v2/publish/" + targetURL,
		targetURL:       targetURL,
		body:            body,
		delay:           normalizeDelay(delay),
		deduplicationID: strings.TrimSpace(deduplicationID),
	}, nil
}

func (p *QStashPublisher) send(ctx context.Context, pr publishRequest) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pr.publishURL, strings.NewReader(string(pr.body)))
	if err != nil {
		return errors.Wrap(err, "create qstash request")
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Method", http.MethodPost)
	if p.retries > 0 {
		req.Header.Set("Upstash-Retries", strconv.Itoa(p.retries))
	}
	if pr.delay != "0s" {
		req.Header.Set("Upstash-Delay", pr.delay)
	}
	if pr.deduplicationID != "" {
		req.Header.Set("Upstash-Deduplication-Id", pr.deduplicationID)
	}
	if p.internalJobToken != "" {
		req.Header.Set("Upstash-Forward-X-Internal-Job-Token", p.internalJobToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "publish qstash job target_url=%s", pr.targetURL), errQStashTransient)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 == 2 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	callErr := errors.Newf("publish qstash job status=%d target_url=%s body=%s", resp.StatusCode, pr.targetURL, strings.TrimSpace(string(raw)))
	if isRetryableStatus(resp.StatusCode) {
		return errors.Mark(callErr, errQStashTransient)
	}
	return callErr
}

// jobName is the last path segment, used as the metrics label.
func jobName(path string) string {
	path = strings.TrimRight(strings.TrimSpace(path), "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		return "unknown"
	}
	return path
}

func normalizeDelay(delay time.Duration) string {
	if delay <= 0 {
		return "0s"
	}
	return strconv.Itoa(int(delay.Round(time.Second).Seconds())) + "s"
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", errors.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", errors.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", errors.Newf("%q has empty host", candidate)
	}

	return strings.TrimRight(candidate, "/"), nil
}

// curlPreview renders a replayable request for failure logs with secrets
// masked.
func curlPreview(pr publishRequest, retries int, withForwardToken bool) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	part := func(value string) {
		if buf.Len() > 0 {
			_ = buf.WriteByte(' ')
		}
		_, _ = buf.WriteString(value)
	}
	header := func(value string) {
		part("-H")
		part(shellQuote(value))
	}

	part("curl -X POST")
	part(shellQuote(pr.publishURL))
	header("Authorization: Bearer ***")
	header("Content-Type: application/json")
	header("Upstash-Method: POST")
	if retries > 0 {
		header("Upstash-Retries: " + strconv.Itoa(retries))
	}
	if pr.delay != "" && pr.delay != "0s" {
		header("Upstash-Delay: " + pr.delay)
	}
	if pr.deduplicationID != "" {
		header("Upstash-Deduplication-Id: " + pr.deduplicationID)
	}
	if withForwardToken {
		header("Upstash-Forward-X-Internal-Job-Token: ***")
	}
	part("-d")
	part(shellQuote(truncateForLog(string(pr.body), 4096)))

	return buf.String()
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "'\"'\"'") + "'"
}

func truncateForLog(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max] + "...(truncated)"
}

func isCircuitFailure(err error) bool {
	return errors.Is(err, errQStashTransient)
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}
