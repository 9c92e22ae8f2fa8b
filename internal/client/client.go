package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tianqi-tools/weather-mcp/internal/auth"
	"github.com/tianqi-tools/weather-mcp/internal/observability"
)

var (
	ErrTimeout = errors.New("请求超时，请检查网络连接")
	ErrNetwork = errors.New("network failure")
)

// StatusError reports a non-2xx HTTP status from the provider, before any
// envelope decoding.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP 错误: %d", e.Code)
}

// APIError reports a non-success code in the provider's classic JSON
// envelope. The message is selected per code to match the upstream docs.
type APIError struct {
	Code string
}

func (e *APIError) Error() string {
	switch e.Code {
	case "401":
		return "Token 无效或已过期"
	case "402":
		return "API 调用次数已用完"
	case "404":
		return "请求的资源不存在"
	}
	return fmt.Sprintf("API 错误: 状态码 %s", e.Code)
}

// Client is the single gateway for all provider calls: one base host, one
// timeout, gzip responses, and a bearer credential resolved per request.
type Client struct {
	host    string
	creds   auth.TokenSource
	timeout time.Duration
	http    *http.Client
}

// New builds a Client against the given base host (scheme included).
func New(host string, creds auth.TokenSource, timeout time.Duration) *Client {
	return &Client{
		host:    host,
		creds:   creds,
		timeout: timeout,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get calls an endpoint that uses the classic response envelope: the body
// carries a "code" field which must be "200" before the payload is trusted.
// On success the full body is unmarshalled into out.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	body, err := c.do(ctx, endpoint, query)
	if err != nil {
		return err
	}

	var env struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if env.Code != "200" {
		return &APIError{Code: env.Code}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// GetNoEnvelope calls an endpoint from the newer API family (alerts, air
// quality) whose responses carry no "code" field. The body is unmarshalled
// as-is; callers are responsible for the zeroResult convention.
func (c *Client) GetNoEnvelope(ctx context.Context, endpoint string, out any) error {
	body, err := c.do(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, endpoint, query)
	if err != nil {
		observability.ProviderAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.ProviderAPIDuration.WithLabelValues(endpoint, "error").Observe(duration)

		var uerr *url.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &uerr) && uerr.Timeout()) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.ProviderAPIDuration.WithLabelValues(endpoint, status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// buildRequest attaches the current bearer credential per call. The token is
// deliberately not baked into the client so a refreshed JWT takes effect on
// the next request.
func (c *Client) buildRequest(ctx context.Context, endpoint string, query url.Values) (*http.Request, error) {
	base, err := url.Parse(c.host)
	if err != nil {
		return nil, fmt.Errorf("invalid API host: %w", err)
	}
	base.Path = endpoint
	if query != nil {
		base.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	token, err := c.creds.Token()
	if err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	// The default transport negotiates gzip and decompresses transparently;
	// setting Accept-Encoding by hand would disable that.
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
