package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/stop-arrivals/gtfsrt"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryInterval = 250 * time.Millisecond
	defaultPlannedLimit  = 100
	maxBodyBytes         = 16 << 20
)

// Observer receives the outcome of every client operation.
type Observer interface {
	ObserveFeedRequest(op string, outcome string, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
	PlannedLimit  int
	// RealtimeStrategies lists strategy names in the order they are tried.
	// Defaults to rows-expected, rows-aimed.
	RealtimeStrategies []string
	// TripUpdatesURL is used by the gtfsrt strategy; relative paths resolve against BaseURL.
	TripUpdatesURL string
	// RouteLabel maps GTFS route_id to a line label for the gtfsrt strategy.
	RouteLabel func(routeID string) string
	// Schedule places delay-only GTFS-RT events on the static timetable.
	Schedule gtfsrt.ScheduleFunc

	HTTPClient *http.Client
	Logger     *zap.Logger
	Observer   Observer
}

// Client talks to the upstream transit API.
type Client struct {
	base          *url.URL
	apiKey        string
	timeout       time.Duration
	maxRetries    uint64
	retryInterval time.Duration
	plannedLimit  int
	httpClient    *http.Client
	logger        *zap.Logger
	observer      Observer
	strategies    []RealtimeStrategy
}

// NewClient validates opts and builds a Client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	c := &Client{
		base:          base,
		apiKey:        opts.APIKey,
		timeout:       opts.Timeout,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		plannedLimit:  opts.PlannedLimit,
		httpClient:    opts.HTTPClient,
		logger:        opts.Logger,
		observer:      opts.Observer,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.retryInterval <= 0 {
		c.retryInterval = defaultRetryInterval
	}
	if c.plannedLimit <= 0 {
		c.plannedLimit = defaultPlannedLimit
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	names := opts.RealtimeStrategies
	if len(names) == 0 {
		names = DefaultRealtimeStrategies
	}
	for _, name := range names {
		s, err := c.newStrategy(name, opts)
		if err != nil {
			return nil, err
		}
		c.strategies = append(c.strategies, s)
	}
	return c, nil
}

// Strategies returns the realtime strategy names in order.
func (c *Client) Strategies() []string {
	out := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		out[i] = s.Name()
	}
	return out
}

func (c *Client) resolve(ref string, q url.Values) (*url.URL, error) {
	rel, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	u := c.base.ResolveReference(rel)
	if len(q) > 0 {
		merged := u.Query()
		for k, vs := range q {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u, nil
}

// get fetches ref with retries on transport failures. Non-2xx answers other than
// 429 and 5xx are not retried.
func (c *Client) get(ctx context.Context, op, ref string, q url.Values, accept string) ([]byte, error) {
	u, err := c.resolve(ref, q)
	if err != nil {
		return nil, transport(op, 0, err)
	}

	attempt := func() ([]byte, error) {
		body, status, err := c.do(ctx, u, accept)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, backoff.Permanent(transport(op, 0, ctx.Err()))
		case err != nil:
			return nil, transport(op, 0, err)
		case status == http.StatusTooManyRequests || status >= 500:
			return nil, transport(op, status, fmt.Errorf("HTTP %d from %s", status, u.Path))
		case status < 200 || status > 299:
			return nil, backoff.Permanent(transport(op, status, fmt.Errorf("HTTP %d from %s", status, u.Path)))
		}
		return body, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	body, err := backoff.RetryNotifyWithData(attempt, policy, func(err error, wait time.Duration) {
		c.logger.Warn("retrying upstream request",
			zap.String("op", op),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	if err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			err = transport(op, 0, err)
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, u *url.URL, accept string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", accept)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// observe reports the outcome of op.
func (c *Client) observe(op string, start time.Time, err error) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	c.observer.ObserveFeedRequest(op, outcome, time.Since(start))
}
