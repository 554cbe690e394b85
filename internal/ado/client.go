// Package ado is the Azure DevOps Services REST backend.
package ado

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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jask/taskcards/internal/store"
)

const apiVersion = "7.1"

// Config identifies the organization and project to talk to.
type Config struct {
	OrganizationURL   string
	Project           string
	Token             string
	RetryMax          int
	RequestsPerSecond float64
}

// Client is a rate-limited, retrying Azure DevOps client.
type Client struct {
	http     *http.Client
	base     string
	project  string
	token    string
	limiter  *rate.Limiter
	log      zerolog.Logger
	parallel int
	waitMin  time.Duration
	waitMax  time.Duration
	retryMax int
}

type Option func(*Client)

// WithLogger routes request and retry logs to log.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(lo, hi time.Duration) Option {
	return func(c *Client) { c.waitMin, c.waitMax = lo, hi }
}

// WithParallelism caps concurrent batch requests.
func WithParallelism(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.parallel = n
		}
	}
}

// New builds a client. It does not contact the server.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.OrganizationURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("ado: invalid organization url %q", cfg.OrganizationURL)
	}
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, fmt.Errorf("ado: project required")
	}
	c := &Client{
		base:     base,
		project:  cfg.Project,
		token:    cfg.Token,
		log:      zerolog.Nop(),
		parallel: 4,
		waitMin:  500 * time.Millisecond,
		waitMax:  10 * time.Second,
		retryMax: cfg.RetryMax,
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	for _, opt := range opts {
		opt(c)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = max(c.retryMax, 0)
	rc.RetryWaitMin = c.waitMin
	rc.RetryWaitMax = c.waitMax
	rc.Logger = retryLogger{log: c.log}
	c.http = rc.StandardClient()
	return c, nil
}

// retryLogger adapts zerolog to retryablehttp.LeveledLogger.
type retryLogger struct {
	log zerolog.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l retryLogger) Info(msg string, kv ...interface{})  {}
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.log.Trace().Fields(kv).Msg(msg) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }

// statusError carries a non-2xx response.
type statusError struct {
	Code    int
	Message string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ado: http %d", e.Code)
	}
	return fmt.Sprintf("ado: http %d: %s", e.Code, e.Message)
}

// projectURL joins segments under {org}/{project}/_apis.
func (c *Client) projectURL(path string, q url.Values) string {
	return c.urlFor(url.PathEscape(c.project)+"/_apis/"+path, q)
}

func (c *Client) urlFor(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api-version", apiVersion)
	return c.base + "/" + path + "?" + q.Encode()
}

// do sends one request and decodes a JSON body into out. Transport failures
// are store.ErrUnavailable; non-2xx responses are *statusError.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", store.ErrUnavailable, err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth("", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("url", rawURL).Msg("ado request failed")
		return fmt.Errorf("%w: %s %s: %w", store.ErrUnavailable, method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	c.log.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("ado request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", store.ErrUnavailable, req.URL.Path, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(data))
}

// classify maps a response error onto the store sentinels. notFound says
// whether a 404 means the requested item does not exist.
func classify(err error, notFound bool) error {
	var se *statusError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.Code == http.StatusBadRequest:
		return fmt.Errorf("%w: %w", store.ErrInvalidQuery, se)
	case se.Code == http.StatusNotFound && notFound:
		return fmt.Errorf("%w: %w", store.ErrNotFound, se)
	default:
		return fmt.Errorf("%w: %w", store.ErrUnavailable, se)
	}
}
