package anubis

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"

	"github.com/riskibarqy/fantasy-roster/internal/domain/user"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/resilience"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

var errAnubisTransient = errors.New("anubis transient failure")

const maxResponseBytes = 1 << 20

type Config struct {
	BaseURL         string
	IntrospectPath  string
	AdminKey        string
	Timeout         time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// Client resolves access tokens to principals through the Anubis introspection
// endpoint. Active principals are cached by token hash.
type Client struct {
	httpClient    *fasthttp.Client
	introspectURL string
	adminKey      string
	timeout       time.Duration
	breaker       *resilience.CircuitBreaker
	cache         *inMemoryPrincipalCache
	logger        *logging.Logger
}

// NewClient accepts a nil breaker, which disables short-circuiting.
func NewClient(cfg Config, breaker *resilience.CircuitBreaker, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxEntries := cfg.CacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	return &Client{
		httpClient: &fasthttp.Client{
			Name:                "fantasy-roster",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		introspectURL: introspectionURL(cfg.BaseURL, cfg.IntrospectPath),
		adminKey:      strings.TrimSpace(cfg.AdminKey),
		timeout:       timeout,
		breaker:       breaker,
		cache:         newInMemoryPrincipalCache(cfg.CacheTTL, maxEntries),
		logger:        logger,
	}
}

func (c *Client) VerifyAccessToken(ctx context.Context, token string) (user.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, errors.Wrap(usecase.ErrUnauthorized, "token is required")
	}

	cacheKey := principalCacheKey(token)
	if principal, ok := c.cache.Get(cacheKey); ok {
		return principal, nil
	}

	if err := c.breaker.Allow(); err != nil {
		c.logger.WarnContext(ctx, "anubis circuit breaker rejected request", "state", c.breaker.State())
		return user.Principal{}, fmt.Errorf("%w: anubis is temporarily unavailable: %w", usecase.ErrDependencyUnavailable, err)
	}

	principal, err := c.introspect(ctx, token)
	c.breaker.Record(err, func(err error) bool { return errors.Is(err, errAnubisTransient) })
	if err != nil {
		return user.Principal{}, err
	}

	c.cache.Set(cacheKey, principal)
	return principal, nil
}

func (c *Client) introspect(ctx context.Context, token string) (user.Principal, error) {
	body, err := sonic.Marshal(introspectRequest{Token: token})
	if err != nil {
		return user.Principal{}, errors.Wrap(err, "marshal introspect request")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.introspectURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	if c.adminKey != "" {
		req.Header.Set("x-admin-key", c.adminKey)
	}
	req.SetBodyRaw(body)

	if err := c.httpClient.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return user.Principal{}, fmt.Errorf("%w: %w", usecase.ErrDependencyUnavailable,
			errors.Mark(errors.Wrap(err, "request introspection to anubis"), errAnubisTransient))
	}

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusUnauthorized:
		return user.Principal{}, errors.Wrap(usecase.ErrUnauthorized, "introspection denied")
	case status == fasthttp.StatusForbidden:
		// Anubis rejected our admin key; callers cannot fix that.
		c.logger.ErrorContext(ctx, "anubis rejected admin key", "status_code", status)
		return user.Principal{}, fmt.Errorf("%w: anubis introspection forbidden status=%d", usecase.ErrDependencyUnavailable, status)
	case status == fasthttp.StatusTooManyRequests || status >= fasthttp.StatusInternalServerError:
		c.logger.WarnContext(ctx, "anubis introspection unavailable", "status_code", status)
		return user.Principal{}, fmt.Errorf("%w: %w", usecase.ErrDependencyUnavailable,
			errors.Mark(errors.Newf("anubis introspection failed status=%d", status), errAnubisTransient))
	case status != fasthttp.StatusOK:
		return user.Principal{}, errors.Newf("anubis introspection failed status=%d", status)
	}

	raw := resp.Body()
	if len(raw) > maxResponseBytes {
		return user.Principal{}, errors.Newf("introspect response too large: %d bytes", len(raw))
	}

	var decoded introspectResponse
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return user.Principal{}, errors.Wrap(err, "unmarshal introspect response")
	}
	if !decoded.Active {
		return user.Principal{}, errors.Wrap(usecase.ErrUnauthorized, "inactive token")
	}
	if strings.TrimSpace(decoded.UserID) == "" {
		return user.Principal{}, errors.New("invalid introspect response: user_id is empty")
	}

	return user.Principal{
		UserID: decoded.UserID,
		Email:  decoded.Email,
	}, nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// introspectionURL joins base and path; an absolute path wins.
func introspectionURL(baseURL, path string) string {
	path = strings.TrimSpace(path)
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	baseURL = strings.TrimSpace(baseURL)
	if path == "" {
		return strings.TrimSuffix(baseURL, "/")
	}
	joined, err := url.JoinPath(baseURL, path)
	if err != nil {
		return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	return joined
}
