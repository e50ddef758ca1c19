package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Client is the transport to the AI suggestion service.
type Client interface {
	MapStandards(ctx context.Context, req MappingRequest) (MappingResponse, error)
	ExpandContent(ctx context.Context, req ExpansionRequest) (ExpansionResponse, error)
}

// HTTPClient talks to the suggestion service over HTTP with retries on
// transient failures.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds a client for the suggestion service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	cl := retryablehttp.NewClient()
	cl.RetryMax = 2
	cl.RetryWaitMin = 500 * time.Millisecond
	cl.RetryWaitMax = 5 * time.Second
	cl.HTTPClient.Timeout = timeout
	cl.Logger = retryLogger{log: log.With().Str("component", "assist-client").Logger()}
	return &HTTPClient{baseURL: baseURL, http: cl.StandardClient()}
}

// MapStandards requests disclosure-standard suggestions for a text span.
func (c *HTTPClient) MapStandards(ctx context.Context, req MappingRequest) (MappingResponse, error) {
	var out MappingResponse
	err := c.post(ctx, "/api/ai-assist/esg-mapping", req, &out)
	return out, err
}

// ExpandContent requests a rewrite suggestion for a block's text.
func (c *HTTPClient) ExpandContent(ctx context.Context, req ExpansionRequest) (ExpansionResponse, error) {
	var out ExpansionResponse
	err := c.post(ctx, "/api/ai-assist/content-expansion", req, &out)
	return out, err
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("suggestion service returned %d: %s", resp.StatusCode, detail)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// retryLogger adapts zerolog to the retryable client's logging interface.
type retryLogger struct {
	log zerolog.Logger
}

func (l retryLogger) Printf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}
