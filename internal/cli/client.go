package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hyperjump/triage/internal/models"
)

// Client talks to a running triage server.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// Emergency submits a triage request. Non-2xx replies still decode into the
// response so callers can show the route and detail; the error reports the status.
func (c *Client) Emergency(ctx context.Context, req models.EmergencyRequest) (*models.EmergencyResponse, error) {
	var out models.EmergencyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/api/v1/emergency")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return &out, fmt.Errorf("server returned %d", resp.StatusCode())
	}
	return &out, nil
}

// IndexStatus fetches the guideline index status.
func (c *Client) IndexStatus(ctx context.Context) (*IndexStatusReport, error) {
	var out IndexStatusReport
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v1/index/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}
