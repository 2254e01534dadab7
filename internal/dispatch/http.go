package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/models"
)

// ErrNotConfigured is returned when a route has no endpoint URL.
var ErrNotConfigured = errors.New("responder endpoint not configured")

// Error is a failed call to one route's responder.
type Error struct {
	Route      models.Route
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s dispatch failed with status %d", e.Route, e.StatusCode)
	}
	return fmt.Sprintf("%s dispatch failed: %v", e.Route, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Dispatcher delivers an envelope to a route's responder.
type Dispatcher interface {
	Dispatch(ctx context.Context, route models.Route, env models.DispatchEnvelope) error
}

// HTTPConfig holds responder endpoints and call limits.
type HTTPConfig struct {
	URLs       map[models.Route]string
	Timeout    time.Duration
	// RetryCount bounds extra attempts after a failed connect. A request that
	// reached the responder is never resent, so one incident yields at most one
	// ambulance or drone order.
	RetryCount int
}

// HTTPDispatcher posts envelopes as JSON to per-route URLs.
type HTTPDispatcher struct {
	client  *resty.Client
	urls    map[models.Route]string
	retries int
	wait    time.Duration
	logger  *zap.Logger
}

// NewHTTPDispatcher creates a dispatcher.
func NewHTTPDispatcher(cfg HTTPConfig, logger *zap.Logger) *HTTPDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	urls := make(map[models.Route]string, len(cfg.URLs))
	for route, u := range cfg.URLs {
		urls[route] = u
	}
	retries := cfg.RetryCount
	if retries < 0 {
		retries = 0
	}
	return &HTTPDispatcher{client: client, urls: urls, retries: retries, wait: 200 * time.Millisecond, logger: logger}
}

// notSent reports whether err happened before the request left this process.
func notSent(err error) bool {
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

// Dispatch posts env to route's endpoint. Any non-2xx status is an *Error.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, route models.Route, env models.DispatchEnvelope) error {
	url := d.urls[route]
	if url == "" {
		return &Error{Route: route, Err: ErrNotConfigured}
	}

	var (
		resp *resty.Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp, err = d.client.R().
			SetContext(ctx).
			SetBody(env).
			Post(url)
		if err == nil || !notSent(err) || attempt >= d.retries {
			break
		}
		d.logger.Warn("responder unreachable, retrying",
			zap.String("route", string(route)),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return &Error{Route: route, Err: ctx.Err()}
		case <-time.After(d.wait << attempt):
		}
	}
	if err != nil {
		return &Error{Route: route, Err: err}
	}
	code := resp.StatusCode()
	if code < 200 || code >= 300 {
		return &Error{Route: route, StatusCode: code, Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}
	d.logger.Debug("responder accepted dispatch",
		zap.String("route", string(route)),
		zap.Int("status_code", code))
	return nil
}
