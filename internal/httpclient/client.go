package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is a JSON HTTP client with per-call timeouts and bounded retries
// on a configured allow-list of transient errors. Every collaborator call
// in the pipeline goes through it so retry policy stays uniform.
type Client struct {
	http            *http.Client
	maxRetries      int
	retryBackoff    time.Duration
	transientErrors []string
	logger          *zap.Logger
}

// Options configures a Client.
type Options struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	TransientErrors []string
}

// New creates a retrying HTTP client.
func New(opts Options, logger *zap.Logger) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:            &http.Client{Timeout: timeout},
		maxRetries:      opts.MaxRetries,
		retryBackoff:    opts.RetryBackoff,
		transientErrors: opts.TransientErrors,
		logger:          logger,
	}
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// PostJSON sends body as JSON and decodes the response into out (unless nil).
func (c *Client) PostJSON(ctx context.Context, rawURL string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

// GetJSON issues a GET with query parameters and decodes the response.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out interface{}) error {
	target := rawURL
	if len(query) > 0 {
		target = rawURL + "?" + query.Encode()
	}

	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
}

// GetBytes downloads a raw resource (e.g. a signed file URL).
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	var content []byte
	err := c.doRaw(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}, func(resp *http.Response) error {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		content = data
		return nil
	})
	return content, err
}

// PostMultipart uploads a file plus form fields and decodes the response.
func (c *Client) PostMultipart(ctx context.Context, rawURL string, fileField, filename string, content []byte, fields map[string]string, out interface{}) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(fileField, filename)
	if err != nil {
		return fmt.Errorf("failed to create multipart file field: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write multipart content: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to write multipart field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	body := buf.Bytes()
	contentType := writer.FormDataContentType()

	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, out)
}

func (c *Client) do(ctx context.Context, build func() (*http.Request, error), out interface{}) error {
	return c.doRaw(ctx, build, func(resp *http.Response) error {
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) doRaw(ctx context.Context, build func() (*http.Request, error), handle func(resp *http.Response) error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryBackoff):
			}
			c.logger.Debug("retrying upstream call", zap.Int("attempt", attempt))
		}

		req, err := build()
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if c.isTransient(err) {
				continue
			}
			return fmt.Errorf("upstream call failed: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body), URL: req.URL.Path}
			lastErr = statusErr
			if isRetryableStatus(resp.StatusCode) {
				continue
			}
			return statusErr
		}

		err = handle(resp)
		resp.Body.Close()
		return err
	}

	return fmt.Errorf("upstream call failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) isTransient(err error) bool {
	msg := err.Error()
	for _, pattern := range c.transientErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
