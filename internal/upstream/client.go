// Package upstream is the HTTP transport to the translation-helps service.
// It makes exactly one attempt per call and reports failures as *Error.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bobmcallan/translation-helps-proxy/internal/common"
	"github.com/bobmcallan/translation-helps-proxy/internal/models"
)

// maxResponseSize caps the upstream response body.
const maxResponseSize = 50 << 20 // 50MB

// mcpSuffix is stripped from the upstream URL to find the REST base.
const mcpSuffix = "/api/mcp"

// Request is one upstream exchange. Query is sent on the URL, Body as JSON.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Body   any
}

// Client talks to the translation-helps service.
type Client struct {
	endpoint   string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *common.Logger
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate checks. The production
	// upstream serves an incomplete chain; this is a deliberate trust decision.
	InsecureSkipVerify bool
}

// NewClient creates a client for the upstream MCP endpoint URL
// (e.g. https://translation-helps-mcp.pages.dev/api/mcp).
func NewClient(endpoint string, opts Options, logger *common.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- upstream chain is known broken
	}

	endpoint = strings.TrimRight(endpoint, "/")
	return &Client{
		endpoint: endpoint,
		baseURL:  strings.TrimSuffix(endpoint, mcpSuffix),
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// Endpoint returns the generic JSON-RPC-like endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// EndpointURL resolves a dedicated REST path against the upstream base.
func (c *Client) EndpointURL(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("endpoint path %q must be absolute", path)
	}
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("upstream URL %q has no scheme or host", c.endpoint)
	}
	return u.String(), nil
}

// Close releases pooled connections. Safe to call more than once.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Do performs one upstream exchange and returns the body, which is
// guaranteed to be valid JSON.
func (c *Client) Do(ctx context.Context, r Request) (json.RawMessage, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	target := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}
	op := method + " " + opPath(r.URL)

	var bodyReader io.Reader
	if r.Body != nil {
		jsonData, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, unreachable(op, err, "invalid request")
	}
	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("url", target).Msg("upstream request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Error().Str("method", method).Str("url", target).Int64("duration_ms", duration.Milliseconds()).Str("error", err.Error()).Msg("upstream request failed")
		if isTimeout(err) {
			return nil, unreachable(op, err, fmt.Sprintf("timed out after %s", c.timeout))
		}
		return nil, unreachable(op, err, "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if isTimeout(err) {
			return nil, unreachable(op, err, fmt.Sprintf("timed out after %s", c.timeout))
		}
		return nil, unreachable(op, err, "failed to read response")
	}

	c.logger.Debug().Int("status", resp.StatusCode).Int64("duration_ms", duration.Milliseconds()).Int("bytes", len(body)).Msg("upstream response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseErrorResponse(op, resp.StatusCode, body)
	}

	if !json.Valid(body) {
		c.logger.Warn().Str("url", target).Str("body", truncate(string(body), 500)).Msg("upstream returned non-JSON body")
		return nil, malformed(op, nil, "response body is not valid JSON")
	}

	return json.RawMessage(body), nil
}

// ListTools fetches the upstream's full tool list.
func (c *Client) ListTools(ctx context.Context) ([]models.ToolDescriptor, error) {
	body, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    c.endpoint,
		Query:  url.Values{"method": {"tools/list"}},
	})
	if err != nil {
		return nil, err
	}

	var listing struct {
		Tools *[]models.ToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, malformed("tools/list", err, "failed to parse tool list")
	}
	if listing.Tools == nil {
		return nil, malformed("tools/list", nil, "response has no tools field")
	}
	return *listing.Tools, nil
}

// Ping checks the upstream answers at all. Only used for a startup log line.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    c.endpoint,
		Query:  url.Values{"method": {"ping"}},
	})
	return err
}

// parseErrorResponse extracts a meaningful error message from an HTTP error response.
func parseErrorResponse(op string, statusCode int, body []byte) error {
	e := &Error{Kind: ErrRejected, Op: op, Status: statusCode}
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		e.Msg = fmt.Sprintf("status %d: %s", statusCode, errResp.Error)
		return e
	}
	e.Msg = fmt.Sprintf("status %d: %s", statusCode, truncate(strings.TrimSpace(string(body)), 200))
	return e
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func opPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
