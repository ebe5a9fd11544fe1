package entsoe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jellydator/ttlcache/v3"
	"github.com/odect/odect/pkg/attribution"
	"github.com/odect/odect/pkg/segment"
	"github.com/prometheus/common/config"
)

// Defaults.
const (
	DefaultURL        = "https://web-api.tp.entsoe.eu/api"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
)

// Client fetches documents from the transparency platform.
type Client struct {
	logger  *slog.Logger
	url     *url.URL
	token   string
	client  *http.Client
	timeout time.Duration
	retries uint64
	backOff func() backoff.BackOff
	cache   *ttlcache.Cache[string, []byte]
}

// New returns a new Client.
func New(c *Config) (*Client, error) {
	if c.URL == "" {
		c.URL = DefaultURL
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, err
	}

	if err := c.HTTPClientConfig.Validate(); err != nil {
		return nil, err
	}

	httpClient, err := config.NewClientFromConfig(c.HTTPClientConfig, "entsoe")
	if err != nil {
		c.Logger.Error("Failed to create HTTP client for ENTSO-E API", "err", err)

		return nil, err
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}

	client := &Client{
		logger:  c.Logger,
		url:     u,
		token:   c.Token,
		client:  httpClient,
		timeout: c.Timeout,
		retries: c.MaxRetries,
		backOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}

	if c.CacheTTL > 0 {
		client.cache = ttlcache.New(ttlcache.WithTTL[string, []byte](c.CacheTTL))
	}

	return client, nil
}

// Generation returns the actual generation per type report of zone during
// the UTC day starting at day. The report's zone is set to name.
func (c *Client) Generation(ctx context.Context, name, code string, day time.Time) (*segment.Report, error) {
	params := url.Values{}
	params.Set("documentType", docActualGeneration)
	params.Set("processType", procRealised)
	params.Set("in_Domain", code)

	body, err := c.get(ctx, params, day)
	if err != nil {
		return nil, err
	}

	return DecodeGeneration(bytes.NewReader(body), name)
}

// Flows returns the physical flows from out into in during the UTC day
// starting at day.
func (c *Client) Flows(ctx context.Context, in, out string, day time.Time) (attribution.Volume, error) {
	params := url.Values{}
	params.Set("documentType", docPhysicalFlows)
	params.Set("in_Domain", in)
	params.Set("out_Domain", out)

	body, err := c.get(ctx, params, day)
	if err != nil {
		return attribution.Volume{}, err
	}

	return DecodeFlows(bytes.NewReader(body), day)
}

// get performs a request for one day with retries and caching.
func (c *Client) get(ctx context.Context, params url.Values, day time.Time) ([]byte, error) {
	params.Set("periodStart", day.UTC().Format(periodLayout))
	params.Set("periodEnd", day.UTC().Add(24*time.Hour).Format(periodLayout))

	// Token is left out of cache keys and logs
	key := params.Encode()
	if c.cache != nil {
		if item := c.cache.Get(key); item != nil {
			c.logger.Debug("Using cached ENTSO-E document", "query", key)

			return item.Value(), nil
		}
	}

	u := *c.url
	q := u.Query()

	for k, v := range params {
		q[k] = v
	}

	q.Set("securityToken", c.token)
	u.RawQuery = q.Encode()

	var body []byte

	operation := func() error {
		var err error

		body, err = c.do(ctx, u.String())

		return err
	}

	notify := func(err error, d time.Duration) {
		c.logger.Warn("ENTSO-E request failed, retrying", "query", key, "retry_in", d, "err", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backOff(), c.retries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(key, body, ttlcache.DefaultTTL)
	}

	return body, nil
}

// do makes a single request. Client errors other than rate limiting are not
// retried.
func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, redact(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	default:
		// No data and bad queries come back as acknowledgement documents
		if name, err := rootName(body); err == nil && name == "Acknowledgement_MarketDocument" {
			return nil, backoff.Permanent(acknowledgement(body))
		}

		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode))
	}
}

// redact removes the URL, which contains the security token, from transport
// errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, uerr.Op, uerr.Err)
	}

	return err
}
