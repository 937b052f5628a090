// Package backend is the client of the remote imagery/compute backend. The
// backend evaluates archive queries and raster expressions server-side and
// returns materialized rasters; this package only moves them over the wire.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/observability"
)

const contentType = "application/x-msgpack"

// Endpoints, also used as metric labels.
const (
	endpointScenes      = "scenes"
	endpointProbability = "cloud_probability"
	endpointTiles       = "tiles"
	endpointElevation   = "elevation"
	endpointForecast    = "precip_forecast"
	endpointReanalysis  = "precip_reanalysis"
)

var paths = map[string]string{
	endpointScenes:      "/v1/scenes/query",
	endpointProbability: "/v1/scenes/cloud-probability",
	endpointTiles:       "/v1/tiles",
	endpointElevation:   "/v1/terrain/elevation",
	endpointForecast:    "/v1/precipitation/forecast",
	endpointReanalysis:  "/v1/precipitation/reanalysis",
}

// Options controls transport and retry.
type Options struct {
	Timeout      time.Duration // per attempt
	MaxRetries   int
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// Client calls the compute backend. It implements the imagery, terrain and
// precipitation collaborators of the service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a backend client.
func NewClient(baseURL, token string, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInitial
	b.MaxInterval = c.opts.RetryMax
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)
}

// call posts req to endpoint and decodes the reply into resp. Retryable
// failures are retried within the retry budget and then surface as
// TransientBackend errors; everything else is returned on first sight.
func (c *Client) call(ctx context.Context, endpoint string, req, resp any) error {
	body, err := msgpack.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	start := time.Now()
	defer func() {
		c.metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	attempt := func() error {
		err := c.do(ctx, endpoint, body, resp)
		var perm *domain.Error
		if errors.As(err, &perm) {
			return backoff.Permanent(err)
		}
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.metrics.BackendRetries.WithLabelValues(endpoint).Inc()
		c.logger.Warn("backend call failed, retrying", "endpoint", endpoint, "error", err, "wait", wait)
	}

	err = backoff.RetryNotify(attempt, c.retryPolicy(ctx), notify)
	if err == nil {
		return nil
	}
	var typed *domain.Error
	if errors.As(err, &typed) || ctx.Err() != nil {
		return err
	}
	return domain.TransientBackend(endpoint, err)
}

// do performs one attempt. Non-retryable statuses come back as *domain.Error.
func (c *Client) do(ctx context.Context, endpoint string, body []byte, resp any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+paths[endpoint], bytes.NewReader(body))
	if err != nil {
		return domain.Configuration("create %s request: %v", endpoint, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return statusError(endpoint, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	// A failed attempt may have filled part of resp.
	if v := reflect.ValueOf(resp); v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().SetZero()
	}
	if err := msgpack.NewDecoder(res.Body).Decode(resp); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// statusError maps a backend status to an error kind. Throttling and server
// errors stay untyped so the caller retries them.
func statusError(endpoint string, status int, msg string) error {
	switch {
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return fmt.Errorf("backend error: status %d: %s", status, msg)
	case status == http.StatusNotFound:
		return domain.DataUnavailable(endpoint, "%s", msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.Configuration("%s: backend rejected credentials: status %d", endpoint, status)
	default:
		return domain.InvalidInput(endpoint, "status %d: %s", status, msg)
	}
}
