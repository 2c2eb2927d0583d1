package healthcheck

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for circuit breaker
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int

	// SuccessThreshold is the number of half-open successes that closes it again
	SuccessThreshold int

	// Timeout is how long the circuit stays open before probing
	Timeout time.Duration

	// MaxRequests caps concurrent probes while half-open
	MaxRequests int

	// OnStateChange is called when the state changes, outside the lock
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// CircuitBreakerStats holds statistics about circuit breaker operations
type CircuitBreakerStats struct {
	TotalRequests        int64 `json:"total_requests"`
	TotalSuccesses       int64 `json:"total_successes"`
	TotalFailures        int64 `json:"total_failures"`
	TotalRejections      int64 `json:"total_rejections"`
	ConsecutiveFailures  int   `json:"consecutive_failures"`
	ConsecutiveSuccesses int   `json:"consecutive_successes"`
}

// CircuitBreaker implements the circuit breaker pattern. The protected call
// runs without holding the lock, so slow calls do not serialize.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitBreakerState
	stats       CircuitBreakerStats
	inFlight    int
	nextAttempt time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 1
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn unless the circuit is open. isFailure decides which
// errors count against the circuit; nil counts every error.
func (cb *CircuitBreaker) Execute(fn func() error, isFailure func(error) bool) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()
	failed := err != nil && (isFailure == nil || isFailure(err))
	cb.after(failed)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	cb.stats.TotalRequests++

	var transition func()
	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextAttempt) {
			cb.stats.TotalRejections++
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		transition = cb.setState(StateHalfOpen)
	case StateHalfOpen:
		if cb.inFlight >= cb.config.MaxRequests {
			cb.stats.TotalRejections++
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	cb.inFlight++
	cb.mu.Unlock()

	if transition != nil {
		transition()
	}
	return nil
}

func (cb *CircuitBreaker) after(failed bool) {
	cb.mu.Lock()
	cb.inFlight--

	var transition func()
	if failed {
		cb.stats.TotalFailures++
		cb.stats.ConsecutiveSuccesses = 0
		cb.stats.ConsecutiveFailures++
		if cb.state == StateHalfOpen ||
			(cb.state == StateClosed && cb.stats.ConsecutiveFailures >= cb.config.FailureThreshold) {
			transition = cb.setState(StateOpen)
		}
	} else {
		cb.stats.TotalSuccesses++
		cb.stats.ConsecutiveFailures = 0
		cb.stats.ConsecutiveSuccesses++
		if cb.state == StateHalfOpen && cb.stats.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			transition = cb.setState(StateClosed)
		}
	}
	cb.mu.Unlock()

	if transition != nil {
		transition()
	}
}

// setState must be called with mu held. It returns the callback to run
// after unlocking, or nil.
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) func() {
	if cb.state == newState {
		return nil
	}

	oldState := cb.state
	cb.state = newState

	switch newState {
	case StateOpen:
		cb.nextAttempt = cb.now().Add(cb.config.Timeout)
	case StateHalfOpen:
		cb.stats.ConsecutiveSuccesses = 0
	case StateClosed:
		cb.stats.ConsecutiveFailures = 0
		cb.stats.ConsecutiveSuccesses = 0
	}

	if cb.config.OnStateChange == nil {
		return nil
	}
	return func() { cb.config.OnStateChange(cb.name, oldState, newState) }
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns a snapshot of the breaker counters
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Reset closes the circuit and clears counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	transition := cb.setState(StateClosed)
	cb.stats = CircuitBreakerStats{}
	cb.nextAttempt = time.Time{}
	cb.mu.Unlock()

	if transition != nil {
		transition()
	}
}

// Checker reports the breaker as a health check: open is degraded
func (cb *CircuitBreaker) Checker() Checker {
	return CheckerFunc(func(ctx context.Context) Check {
		cb.mu.Lock()
		state, stats, next := cb.state, cb.stats, cb.nextAttempt
		cb.mu.Unlock()

		check := Check{
			Status: StatusHealthy,
			Metadata: map[string]interface{}{
				"state":                state.String(),
				"consecutive_failures": stats.ConsecutiveFailures,
				"total_rejections":     stats.TotalRejections,
			},
		}
		if state == StateOpen {
			check.Status = StatusDegraded
			check.Message = "circuit open until " + next.Format(time.RFC3339)
		}
		return check
	})
}
