// Package backend is the HTTP transport to the document Q&A service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"docchat/internal/domain"
	"docchat/internal/infra/config"
)

// maxResponseBody is the maximum response body size read from the backend.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

const requestIDHeader = "X-Request-ID"

// Default connection pool settings: one host, few concurrent requests.
const (
	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 90 * time.Second
	defaultConnTimeout     = 10 * time.Second
)

// Client talks to the backend REST API. It implements domain.Searcher,
// domain.Answerer, domain.DocumentRepository and domain.HealthChecker.
type Client struct {
	baseURL       string
	apiKey        string
	timeout       time.Duration
	uploadTimeout time.Duration
	maxSources    int

	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	cache   *cache.Cache
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSearchCache caches successful search responses for ttl. A zero ttl disables caching.
func WithSearchCache(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// WithMaxSources sets the max_sources sent with every question.
func WithMaxSources(n int) Option {
	return func(c *Client) { c.maxSources = n }
}

// New creates a backend client from cfg.
func New(cfg config.BackendConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		timeout:       cfg.Timeout,
		uploadTimeout: cfg.UploadTimeout,
		maxSources:    5,
		client:        NewHTTPClient(cfg.MaxIdleConns),
		logger:        slog.Default(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.CircuitBreaker.Enabled {
		c.breaker = newBreaker(cfg.CircuitBreaker, c.logger)
	}
	return c
}

// NewPooledTransport creates an http.Transport with connection pooling for a
// single backend host.
func NewPooledTransport(maxIdle int) *http.Transport {
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultConnTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdle,
		IdleConnTimeout:     defaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// NewHTTPClient creates an *http.Client on a pooled transport. Deadlines come
// from the per-request context, since uploads and queries need different ones.
func NewHTTPClient(maxIdle int) *http.Client {
	return &http.Client{Transport: NewPooledTransport(maxIdle)}
}

func newBreaker(cfg config.CircuitBreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	maxFailures := uint32(cfg.MaxFailures)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1, // one trial request while half-open
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Client errors and cancellations say nothing about backend health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var te *domain.TransportError
			if errors.As(err, &te) {
				return !te.Retryable()
			}
			return false
		},
	})
}

// request describes one backend call.
type request struct {
	method      string
	path        string
	contentType string
	body        []byte
	timeout     time.Duration
}

// do executes req through the rate limiter and circuit breaker and returns the
// response body of a 2xx response. Any other outcome is a *domain.TransportError,
// except breaker rejections which wrap domain.ErrCircuitOpen.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.TransportError{Message: "rate limiter", Err: err}
		}
	}
	if c.breaker == nil {
		return c.roundTrip(ctx, req)
	}
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", domain.ErrCircuitOpen, err)
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	timeout := req.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	reqID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, reqID)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Debug("backend request failed",
			"method", req.method, "path", req.path, "request_id", reqID, "error", err)
		return nil, &domain.TransportError{RequestID: reqID, Message: err.Error(), Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, &domain.TransportError{RequestID: reqID, Message: "read response", Err: err}
	}

	c.logger.Debug("backend request",
		"method", req.method,
		"path", req.path,
		"status", httpResp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, parseError(httpResp.StatusCode, reqID, respBody)
	}
	return respBody, nil
}

// errorBody covers both the service's {success,error,code} envelope and
// the framework's {detail} body.
type errorBody struct {
	Error  string          `json:"error"`
	Code   string          `json:"code"`
	Detail json.RawMessage `json:"detail"`
}

// parseError maps a non-2xx response to a *domain.TransportError.
func parseError(status int, reqID string, body []byte) *domain.TransportError {
	te := &domain.TransportError{Status: status, RequestID: reqID}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		te.Code = eb.Code
		te.Message = eb.Error
		if te.Message == "" && len(eb.Detail) > 0 {
			var s string
			if json.Unmarshal(eb.Detail, &s) == nil {
				te.Message = s
			} else {
				te.Message = string(eb.Detail)
			}
		}
	}
	if te.Message == "" {
		te.Message = strings.TrimSpace(string(body))
	}
	if te.Message == "" {
		te.Message = http.StatusText(status)
	}
	return te
}

// getJSON and postJSON decode a 2xx response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		contentType: "application/json",
		body:        payload,
	})
	if err != nil {
		return err
	}
	return decode(body, out)
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrBackend, err)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ domain.Searcher           = (*Client)(nil)
	_ domain.Answerer           = (*Client)(nil)
	_ domain.DocumentRepository = (*Client)(nil)
	_ domain.DocumentInspector  = (*Client)(nil)
	_ domain.Explainer          = (*Client)(nil)
	_ domain.HealthChecker      = (*Client)(nil)
)
