// Package telemetry talks to the vehicle signals API on behalf of generated
// scripts. It is the only network surface the sandbox exposes.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultMaxBodyBytes = 32 * 1024 * 1024 // 32MB per fetch

var (
	// ErrForbiddenURL is returned when a script asks for a URL outside the
	// configured signals API.
	ErrForbiddenURL = errors.New("telemetry: url not allowed")

	// ErrResponseTooLarge is returned when a body exceeds Config.MaxBodyBytes.
	ErrResponseTooLarge = errors.New("telemetry: response too large")
)

type Config struct {
	BaseURL   string
	Token     string
	VehicleID string
	TripID    string
	Timeout   time.Duration // per-fetch timeout (default: 30s)

	MaxBodyBytes int64 // default: 32MB

	HTTPClient *http.Client
}

// Response is a fully read upstream reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client builds signal query URLs and fetches them.
type Client struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("telemetry: BaseURL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("telemetry: invalid BaseURL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			// Redirects could leave the allowed host.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Client{
		cfg:        cfg,
		base:       base,
		httpClient: httpClient,
		logger:     logger.Named("telemetry"),
	}, nil
}

// BuildURL returns the signals query URL for the given names. Blank names
// are dropped; the rest are trimmed and comma-joined.
func (c *Client) BuildURL(signals []string) string {
	names := make([]string, 0, len(signals))
	for _, s := range signals {
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}

	q := c.base.Query()
	q.Set("vehicle_id", c.cfg.VehicleID)
	q.Set("trip_id", c.cfg.TripID)
	q.Set("signals", strings.Join(names, ","))
	if c.cfg.Token != "" {
		q.Set("token", c.cfg.Token)
	}

	u := *c.base
	u.RawQuery = q.Encode()

	c.logger.Debug("build_url", zap.Strings("signals", names))
	return u.String()
}

// Get fetches rawURL, which must point at the configured API host. Errors
// never carry the query string, which holds the API token.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.New("telemetry: invalid url")
	}
	if !c.allowed(target) {
		return nil, fmt.Errorf("%w: %s", ErrForbiddenURL, withoutQuery(target))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build request for %s", withoutQuery(target))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = withoutQuery(target)
		}
		c.logger.Warn("script http_get failed", zap.String("path", target.Path), zap.Error(err))
		return nil, fmt.Errorf("telemetry: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("telemetry: read body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrResponseTooLarge, c.cfg.MaxBodyBytes)
	}

	c.logger.Info("script http_get",
		zap.String("path", target.Path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// withoutQuery renders u with credentials, query and fragment removed.
func withoutQuery(u *url.URL) string {
	clean := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	return clean.String()
}

func (c *Client) allowed(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.base.Scheme) && strings.EqualFold(u.Host, c.base.Host)
}
