// Package graphql is the transport for the headless commerce GraphQL endpoint.
// Catalog lookups and order submission both go through Client.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/giftset-storefront/internal/obs"
	"github.com/noah-isme/giftset-storefront/internal/resilience"
)

// SessionHeader carries the upstream cart session token between mutations.
const SessionHeader = "woocommerce-session"

// ErrEmptyResponse is returned when the endpoint replies without data or errors.
var ErrEmptyResponse = errors.New("graphql: empty response")

// Error is a single entry of the GraphQL "errors" array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Errors is returned when the endpoint reports one or more GraphQL errors.
type Errors []Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "graphql: unknown error"
	}
	msgs := make([]string, 0, len(e))
	for _, item := range e {
		msgs = append(msgs, item.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// Contains reports whether any error message contains substr (case-insensitive).
func (e Errors) Contains(substr string) bool {
	needle := strings.ToLower(substr)
	for _, item := range e {
		if strings.Contains(strings.ToLower(item.Message), needle) {
			return true
		}
	}
	return false
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// Client posts GraphQL documents to Endpoint. Target labels metrics and logs
// ("catalog" or "order").
type Client struct {
	Endpoint string
	Target   string
	HTTP     resilience.HTTPClient
	Logger   zerolog.Logger
}

var operationPattern = regexp.MustCompile(`(?m)^\s*(?:query|mutation)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// OperationName extracts the operation name from a document, or "anonymous".
func OperationName(query string) string {
	if m := operationPattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return "anonymous"
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var gqlErrs Errors
	if errors.As(err, &gqlErrs) {
		return "graphql_error"
	}
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return "circuit_open"
	}
	return "transport_error"
}

// NewHTTPClient returns an http.Client with an OpenTelemetry transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Do executes query and decodes the "data" member into out. The session token
// is forwarded when non-empty; the token returned by the endpoint (or the
// original when none is returned) is handed back for the next call.
func (c *Client) Do(ctx context.Context, query string, vars map[string]any, session string, out any) (string, error) {
	next, err := c.do(ctx, query, vars, session, out)
	if c != nil {
		target := c.Target
		if target == "" {
			target = "default"
		}
		obs.IncCounter(obs.UpstreamRequestTotal, target, OperationName(query), outcomeOf(err))
	}
	return next, err
}

func (c *Client) do(ctx context.Context, query string, vars map[string]any, session string, out any) (string, error) {
	if c == nil || strings.TrimSpace(c.Endpoint) == "" {
		return session, errors.New("graphql: endpoint not configured")
	}
	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return session, errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return session, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, "Session "+session)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		c.Logger.Warn().Err(err).Str("operation", OperationName(query)).Msg("graphql_transport_error")
		return session, errors.Wrap(err, "post graphql")
	}
	defer func() { _ = resp.Body.Close() }()

	next := session
	if token := strings.TrimSpace(resp.Header.Get(SessionHeader)); token != "" {
		next = strings.TrimSpace(strings.TrimPrefix(token, "Session "))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return next, errors.Wrap(err, "read response")
	}
	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return next, errors.Wrapf(err, "decode response (status %d)", resp.StatusCode)
	}
	c.Logger.Debug().
		Int("status", resp.StatusCode).
		Int("errors", len(decoded.Errors)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("graphql_request")

	if len(decoded.Errors) > 0 {
		return next, decoded.Errors
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return next, errors.Errorf("graphql: unexpected status %d", resp.StatusCode)
	}
	if len(decoded.Data) == 0 || string(decoded.Data) == "null" {
		return next, ErrEmptyResponse
	}
	if out == nil {
		return next, nil
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return next, errors.Wrap(err, "decode data")
	}
	return next, nil
}
