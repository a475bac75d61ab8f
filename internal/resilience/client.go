package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming.
	Name string

	// Timeout bounds each individual HTTP call. Default: 3 seconds.
	// A push that cannot complete inside two poll cycles is not worth
	// having.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the first try.
	// Default: 2
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 50ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 500ms
	MaxInterval time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig when set.
	CircuitBreaker *CircuitBreakerConfig
}

// DefaultClientConfig returns client settings tuned for the poll cadence.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         3 * time.Second,
		MaxRetries:      2,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		CircuitBreaker:  &cbConfig,
	}
}

// Client is an HTTP client with circuit breaker and bounded retry.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 50 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 500 * time.Millisecond
	}

	var cb *gobreaker.CircuitBreaker[*http.Response]
	if cfg.CircuitBreaker != nil {
		cb = NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker) //nolint:bodyclose // type param, not response
	} else {
		defaultCB := DefaultCircuitBreakerConfig(cfg.Name)
		cb = NewCircuitBreaker[*http.Response](defaultCB) //nolint:bodyclose // type param, not response
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: cb,
		config:         cfg,
	}
}

// Do executes an HTTP request with circuit breaker protection and retry on
// transient failures (5xx, network errors). Returns immediately with
// ErrCircuitOpen while the breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	backoffWithRetries := backoff.WithMaxRetries(bo, c.config.MaxRetries)
	backoffWithContext := backoff.WithContext(backoffWithRetries, ctx)

	var lastResp *http.Response

	operation := func() error {
		// 5xx responses come back as errors so they count against the
		// breaker and trigger a retry.
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller is responsible for closing
			reqClone := req.Clone(ctx)
			r, err := c.httpClient.Do(reqClone)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, backoffWithContext)
	if err != nil {
		// A 5xx that survived all retries is still a response the caller
		// may want to inspect.
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	return lastResp, nil
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
