// Package resilience wraps HTTP calls from device units with timeouts,
// bounded retry and a circuit breaker. Units share their LAN with the
// casino's other gear; a flapping server must not be hammered by a floor
// full of timers retrying in lockstep.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the circuit breaker in logs.
	Name string

	// MaxRequests is the number of probe requests allowed while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval is the cyclic period for clearing counts while closed.
	// Default: 0 (disabled)
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	// Default: 10 seconds, five poll cycles.
	Timeout time.Duration

	// ReadyToTrip determines when to open the breaker. Nil uses
	// DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called on breaker state transitions.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns breaker settings tuned for the 2s
// poll cadence.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker after three consecutive failures.
// With one push every two seconds that is six seconds of a dead server.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return counts.ConsecutiveFailures >= 3
}

// NewCircuitBreaker creates a circuit breaker with the given configuration.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}
	return gobreaker.NewCircuitBreaker[T](settings)
}
