// Package forgeapi is a small client for the forge's /api/v1 REST surface.
// It covers what the suite needs: token auth, creating and deleting a user
// repository, and reading one back.
package forgeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/kuitang/forge-e2e/internal/logutil"
	"github.com/kuitang/forge-e2e/internal/obs"
	"github.com/kuitang/forge-e2e/internal/urlutil"
)

const apiPrefix = "/api/v1"

// Options configure a Client.
type Options struct {
	// Token is sent as "Authorization: token <Token>". Empty means anonymous.
	Token string
	// RPS and Burst pace outgoing requests. RPS <= 0 disables pacing.
	RPS   float64
	Burst int
	// HTTPClient is the base client. Its transport is wrapped.
	HTTPClient *http.Client
	Timeout    time.Duration
	// MaxRetries bounds retries after a 429. Zero means 2; negative disables them.
	MaxRetries int
	Logger     *slog.Logger
}

// Client talks to one forge.
type Client struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// Response wraps the raw HTTP response of a call.
type Response struct {
	*http.Response
	// Body holds the response body, already read and closed.
	Body []byte
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("forge api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("forge api: status %d: %s", e.StatusCode, e.Message)
}

// StatusOf returns the status code of an *APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// NewClient returns a Client for the forge at baseURL.
func NewClient(baseURL string, opts Options) *Client {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = obs.Pkg("forgeapi")
	}

	var transport http.RoundTripper = &obs.Transport{Base: base.Transport, Logger: logger}
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "token"}),
			Base:   transport,
		}
	}

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	retries := opts.MaxRetries
	switch {
	case retries == 0:
		retries = 2
	case retries < 0:
		retries = 0
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport:     transport,
			Timeout:       timeout,
			CheckRedirect: base.CheckRedirect,
			Jar:           base.Jar,
		},
		limiter:    limiter,
		maxRetries: retries,
	}
}

// CurrentUser returns the account the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*User, *Response, error) {
	var u User
	resp, err := c.do(ctx, http.MethodGet, "/user", nil, &u)
	if err != nil {
		return nil, resp, err
	}
	return &u, resp, nil
}

// CreateUserRepo creates a repository owned by the token's user.
func (c *Client) CreateUserRepo(ctx context.Context, opt CreateRepoOption) (*Repository, *Response, error) {
	if strings.TrimSpace(opt.Name) == "" {
		return nil, nil, fmt.Errorf("create repo: name is required")
	}
	var repo Repository
	resp, err := c.do(ctx, http.MethodPost, "/user/repos", opt, &repo)
	if err != nil {
		return nil, resp, fmt.Errorf("create repo %q: %w", opt.Name, err)
	}
	return &repo, resp, nil
}

// GetRepo reads owner/name.
func (c *Client) GetRepo(ctx context.Context, owner, name string) (*Repository, *Response, error) {
	var repo Repository
	resp, err := c.do(ctx, http.MethodGet, urlutil.OwnerPath("repos", owner, name), nil, &repo)
	if err != nil {
		return nil, resp, fmt.Errorf("get repo %s/%s: %w", owner, name, err)
	}
	return &repo, resp, nil
}

// DeleteRepo deletes owner/name. The forge answers 204 on success.
func (c *Client) DeleteRepo(ctx context.Context, owner, name string) (*Response, error) {
	resp, err := c.do(ctx, http.MethodDelete, urlutil.OwnerPath("repos", owner, name), nil, nil)
	if err != nil {
		return resp, fmt.Errorf("delete repo %s/%s: %w", owner, name, err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (*Response, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, path, payload)
		if err != nil {
			return resp, err
		}
		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			obs.From(ctx).With("pkg", "forgeapi").Warn("api_throttled",
				"method", method, "path", apiPrefix+path, "attempt", attempt+1, "wait", wait)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return resp, ctx.Err()
			case <-timer.C:
			}
			continue
		}
		return resp, decode(resp, out)
	}
}

// send performs one request and reads the whole body.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	url := urlutil.BuildAbsolute(c.baseURL, apiPrefix+path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	obs.From(ctx).With("pkg", "forgeapi").Debug("api_call",
		"method", method,
		"path", apiPrefix+path,
		"status", httpResp.StatusCode,
		"request", logutil.TruncateForLog(logutil.RedactJSONForLog(payload), 256),
	)
	return &Response{Response: httpResp, Body: data}, nil
}

// decode turns a non-2xx response into an *APIError and unmarshals the rest.
func decode(resp *Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb ErrorBody
		if json.Unmarshal(resp.Body, &eb) == nil && eb.Message != "" {
			apiErr.Message = eb.Message
		} else {
			apiErr.Message = logutil.TruncateForLog(string(resp.Body), 200)
		}
		return apiErr
	}
	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// retryAfter reads a Retry-After in seconds, clamped to [100ms, 10s].
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return time.Second
	}
	d := time.Duration(secs) * time.Second
	return min(max(d, 100*time.Millisecond), 10*time.Second)
}
