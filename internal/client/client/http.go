package client

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

	"github.com/dmitrijs2005/legalassist/internal/logging"
)

const DefaultBaseURL = "http://localhost:3001/api"

// envelope is the common response wrapper of the backend.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Details string `json:"details"`
	} `json:"error"`
}

func (e *envelope) errorText() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != nil {
		return e.Error.Details
	}
	return ""
}

type APIClient struct {
	baseURL   string
	http      *http.Client
	transport *authTransport
	log       logging.Logger
}

type Option func(*options)

type options struct {
	base    http.RoundTripper
	timeout time.Duration
	log     logging.Logger
}

// WithBaseTransport replaces http.DefaultTransport underneath the auth layer.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithTimeout bounds each request including the refresh retry. Zero means
// no client-side timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// New builds a client for baseURL (e.g. "http://localhost:3001/api").
func New(baseURL string, opts ...Option) (*APIClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}

	o := &options{log: logging.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     o.log.With("component", "api"),
	}
	c.transport = newAuthTransport(o.base, c.Refresh, c.log)
	c.http = &http.Client{Transport: c.transport, Timeout: o.timeout}

	return c, nil
}

// SetTokenSource connects the session store to the transport. Until set,
// requests go out without Authorization.
func (c *APIClient) SetTokenSource(ts TokenSource) {
	c.transport.setTokenSource(ts)
}

func (c *APIClient) endpoint(path string, query url.Values) string {
	s := c.baseURL + path
	if len(query) > 0 {
		s += "?" + query.Encode()
	}
	return s
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		// bytes.Reader lets net/http set GetBody for the refresh retry
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send executes req and returns the response for any status. Transport
// errors are mapped to sentinels.
func (c *APIClient) send(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	c.log.Debug(ctx, "request", "method", req.Method, "path", req.URL.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionExpired):
			return nil, ErrSessionExpired
		case errors.Is(err, ErrBodyNotReplayable):
			return nil, ErrBodyNotReplayable
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return resp, nil
}

// decode reads a JSON envelope. On non-2xx it returns *APIError with the
// server message or fallback; on success it unmarshals data into out.
func (c *APIClient) decode(ctx context.Context, resp *http.Response, out any, fallback string) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	var env envelope
	jsonErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fallback
		if jsonErr == nil && env.errorText() != "" {
			msg = env.errorText()
		}
		c.log.Debug(ctx, "request failed", "status", resp.StatusCode, "message", msg)
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if jsonErr != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, jsonErr)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: empty data", ErrUnexpectedResponse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, body, out any, fallback string) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	return c.decode(ctx, resp, out, fallback)
}

func pathID(id string) string {
	return url.PathEscape(id)
}
