package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/apierr"
)

type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

func (c *BaseClient) Headers() http.Header {
	h := make(http.Header, len(c.headers))
	for key, value := range c.headers {
		h.Set(key, value)
	}
	return h
}

// MakeRequest performs the request and maps the response status onto the apierr taxonomy.
func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to make request: %v: %w", err, apierr.ErrTransient)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v: %w", err, apierr.ErrTransient)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, responseBody)
	}

	return responseBody, nil
}

// statusError classifies a non-2xx response.
func statusError(code int, body []byte) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("API returned status code: %d: %w", code, apierr.ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("API returned status code: %d: %w", code, apierr.ErrNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusTooManyRequests:
		return apierr.NewValidationError("", problemTitle(body))
	default:
		return fmt.Errorf("API returned status code: %d, response: %s: %w", code, string(body), apierr.ErrTransient)
	}
}

// problemTitle extracts a human readable message from an error body.
func problemTitle(body []byte) string {
	var problem struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &problem); err == nil {
		if problem.Title != "" {
			return problem.Title
		}
		if problem.Message != "" {
			return problem.Message
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return "request rejected"
}

func (c *BaseClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodGet, endpoint, nil)
}

func (c *BaseClient) Post(ctx context.Context, endpoint string, body io.Reader) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodPost, endpoint, body)
}

func (c *BaseClient) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodDelete, endpoint, nil)
}

// GetJSON fetches endpoint and decodes the body into out.
func (c *BaseClient) GetJSON(ctx context.Context, endpoint string, out interface{}) error {
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %v, raw response: %s: %w", err, string(body), apierr.ErrTransient)
	}
	return nil
}
