// Package circuitbreaker stops calling a failing dependency for a while and
// lets one trial call through before closing again.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota + 1
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreaker struct {
	name        string
	log         *zap.Logger
	now         func() time.Time
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	openSince   time.Time
	openTimeout time.Duration
}

func New(name string, maxFailures int, openTimeout time.Duration, log *zap.Logger) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CircuitBreaker{
		name:        name,
		log:         log.With(zap.String("breaker", name)),
		now:         time.Now,
		state:       StateClosed,
		maxFailures: maxFailures,
		openTimeout: openTimeout,
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports ErrCircuitOpen while the breaker is open. After openTimeout
// one caller is let through in half-open state.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openSince) > cb.openTimeout {
			cb.log.Warn("circuit breaker open -> half-open")
			cb.state = StateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.log.Info("circuit breaker half-open -> closed")
		cb.state = StateClosed
		cb.failures = 0
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) OnFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.log.Error("circuit breaker half-open -> open, trial call failed")
		cb.state = StateOpen
		cb.openSince = cb.now()
	case StateClosed:
		cb.failures++
		cb.log.Debug("circuit breaker failure recorded", zap.Int("count", cb.failures))
		if cb.failures >= cb.maxFailures {
			cb.log.Error("circuit breaker closed -> open, threshold reached", zap.Int("failures", cb.failures))
			cb.state = StateOpen
			cb.openSince = cb.now()
		}
	}
}

// Do runs fn when the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		cb.OnFailure()
		return err
	}
	cb.OnSuccess()
	return nil
}
