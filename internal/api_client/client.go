package api_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"admin-console/internal/models"
)

// TokenSource supplies the bearer token for a request and is cleared when the
// backend rejects it.
type TokenSource interface {
	AccessToken(ctx context.Context) string
	Clear(ctx context.Context) error
}

type BreakerOptions struct {
	Enabled      bool
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	LoginPath string
	Breaker   BreakerOptions
	// Transport overrides the default round tripper, mostly for tests.
	Transport http.RoundTripper
}

// Client for interacting with the marketplace backend API.
type Client struct {
	baseURL    *url.URL
	loginPath  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a new backend API client.
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = "auth/login/"
	}

	c := &Client{
		baseURL:   base,
		loginPath: loginPath,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		logger: logger,
	}

	if opts.Breaker.Enabled {
		b := opts.Breaker
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "backend",
			MaxRequests: b.MaxRequests,
			Interval:    b.Interval,
			Timeout:     b.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= b.MinRequests && failureRatio >= b.FailureRatio
			},
			// Only transport errors and 5xx answers count against the backend.
			IsSuccessful: func(err error) bool {
				var apiErr *Error
				if errors.As(err, &apiErr) {
					return apiErr.StatusCode < http.StatusInternalServerError
				}
				return err == nil
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Backend circuit breaker changed state",
					zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}

	return c, nil
}

// BaseURL returns the backend root with a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) resolve(path string, params any) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	u := c.baseURL.ResolveReference(ref)

	values, err := EncodeParams(params)
	if err != nil {
		return "", err
	}
	if len(values) > 0 {
		q := u.Query()
		for key, vs := range values {
			for _, v := range vs {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// EncodeParams turns params into query values. params may be nil, url.Values or
// a struct tagged for go-querystring.
func EncodeParams(params any) (url.Values, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return p, nil
	default:
		values, err := query.Values(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query params: %w", err)
		}
		return values, nil
	}
}

// Do sends one request and returns the raw response body of a 2xx answer.
// tokens may be nil for anonymous calls. A 401 answer to a request that
// carried a token clears tokens before the error is returned. Nothing is
// retried.
func (c *Client) Do(ctx context.Context, tokens TokenSource, method, path string, params, body any) ([]byte, error) {
	target, err := c.resolve(path, params)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	token := ""
	if tokens != nil {
		token = tokens.AccessToken(ctx)
	}

	send := func() ([]byte, error) {
		return c.send(ctx, method, path, target, token, payload)
	}

	var data []byte
	if c.breaker != nil {
		var res interface{}
		res, err = c.breaker.Execute(func() (interface{}, error) {
			return send()
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("Backend circuit breaker rejected request",
				zap.String("method", method), zap.String("path", path), zap.Error(err))
			return nil, fmt.Errorf("backend unavailable: %w", err)
		}
		if b, ok := res.([]byte); ok {
			data = b
		}
	} else {
		data, err = send()
	}

	if err != nil {
		if token != "" && IsUnauthorized(err) {
			c.logger.Warn("Backend rejected access token, clearing session tokens",
				zap.String("method", method), zap.String("path", path))
			if clearErr := tokens.Clear(ctx); clearErr != nil {
				c.logger.Error("Failed to clear session tokens", zap.Error(clearErr))
			}
		}
		return nil, err
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, method, path, target, token string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		c.logger.Error("Failed to create request to backend", zap.Error(err))
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to make request to backend",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to make request to backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Backend returned non-OK status",
			zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, &Error{Method: method, Path: path, StatusCode: resp.StatusCode, Body: data}
	}
	return data, nil
}

// DoJSON is Do followed by decoding the body into out. An empty body leaves
// out untouched.
func (c *Client) DoJSON(ctx context.Context, tokens TokenSource, method, path string, params, body, out any) error {
	data, err := c.Do(ctx, tokens, method, path, params, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("Failed to decode backend response", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

// Login exchanges credentials for a token pair. It never carries a bearer
// token.
func (c *Client) Login(ctx context.Context, username, password string) (*models.TokenPair, error) {
	credentials := map[string]string{"username": username, "password": password}
	var pair models.TokenPair
	if err := c.DoJSON(ctx, nil, http.MethodPost, c.loginPath, nil, credentials, &pair); err != nil {
		return nil, err
	}
	if pair.Access == "" {
		return nil, errors.New("backend login response has no access token")
	}
	c.logger.Info("Staff member signed in", zap.String("username", username))
	return &pair, nil
}
