package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
)

const (
	tracerName      = "github.com/plumber-cd/ez-netwatch/internal/api"
	RequestIDHeader = "X-Request-Id"
)

// Client talks to the inventory backend. Cookies set by the backend are kept
// in a jar and sent back on every request.
type Client struct {
	base     string
	http     *http.Client
	token    string
	username string
	password string
	tracer   trace.Tracer
	logger   *pterm.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its cookie jar is kept if set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBasicAuth sends basic credentials with every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the request logger.
func WithLogger(logger *pterm.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API rooted at base.
func New(base string, opts ...Option) (*Client, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse API base %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("API base %q must be an http or https URL", base)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Jar: jar},
		tracer: otel.Tracer(tracerName),
		logger: pterm.DefaultLogger.WithWriter(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the API base without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base
}

// Endpoint joins path onto the API base.
func (c *Client) Endpoint(path string) string {
	return c.base + path
}

// Do sends a request and returns the decoded JSON body. The body is encoded
// as JSON when non-nil, and only then is a Content-Type header sent.
// Responses without a JSON content type yield a nil result.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	endpoint := c.Endpoint(path)
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", endpoint),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	result, err := c.do(ctx, span, method, endpoint, requestID, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("request failed", c.logger.Args("method", method, "url", endpoint, "request_id", requestID, "error", err))
		return nil, err
	}
	c.logger.Debug("request done", c.logger.Args("method", method, "url", endpoint, "request_id", requestID))
	return result, nil
}

func (c *Client) do(ctx context.Context, span trace.Span, method, endpoint, requestID string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		creds := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
		req.Header.Set("Authorization", "Basic "+creds)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// An unreadable body only loses the detail, never the status.
		text, _ := io.ReadAll(resp.Body)
		return nil, newStatusError(resp, string(text))
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("decode response from %s: invalid JSON", endpoint)
	}
	return json.RawMessage(data), nil
}

// Submit sends a dialog payload along route.
func (c *Client) Submit(ctx context.Context, route domain.Route, payload domain.Payload) (json.RawMessage, error) {
	return c.Do(ctx, route.Method, route.Path, payload)
}

// List fetches one collection.
func (c *Client) List(ctx context.Context, source domain.Source) ([]domain.Entry, error) {
	data, err := c.Do(ctx, http.MethodGet, domain.ListPath(source), nil)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var entries []domain.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s entries: %w", source, err)
	}
	return entries, nil
}

// Inventory fetches both collections.
func (c *Client) Inventory(ctx context.Context) (*domain.Inventory, error) {
	approved, err := c.List(ctx, domain.SourceApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved: %w", err)
	}
	unapproved, err := c.List(ctx, domain.SourceUnapproved)
	if err != nil {
		return nil, fmt.Errorf("list unapproved: %w", err)
	}
	inv := domain.NewInventory(approved, unapproved)
	inv.FetchedAt = time.Now()
	return inv, nil
}

// Remove deletes an entry from a collection.
func (c *Client) Remove(ctx context.Context, source domain.Source, ip, mac string) error {
	_, err := c.Do(ctx, http.MethodDelete, domain.RemovePath(source), domain.Identity{
		IPAddress:  strings.TrimSpace(ip),
		MACAddress: domain.NormalizeMAC(mac),
	})
	return err
}

// StartScan asks the backend to run a network scan.
func (c *Client) StartScan(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodPost, domain.PathStartScan, nil)
	return err
}
