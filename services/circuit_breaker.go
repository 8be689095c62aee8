package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	appconfig "buyside-ai/config"
	"buyside-ai/observability"
)

// ErrServiceUnavailable is returned when a breaker rejects a call
var ErrServiceUnavailable = errors.New("service unavailable")

// Circuit breaker names, one per upstream
const (
	BreakerYahoo        = "yahoo"
	BreakerAlpaca       = "alpaca"
	BreakerAlphaVantage = "alphavantage"
	BreakerLLM          = "llm"
	BreakerBedrock      = "bedrock"
)

// CircuitBreakerConfig controls when a breaker opens and how it recovers
type CircuitBreakerConfig struct {
	MinRequests  uint32        // calls seen before the failure ratio is considered
	FailureRatio float64       // share of failed calls that opens the breaker
	MaxRequests  uint32        // probes let through while half-open
	Interval     time.Duration // closed-state window after which counts reset
	Timeout      time.Duration // time spent open before probing
}

// DefaultCircuitBreakerConfig is used when nothing else is configured
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MinRequests:  5,
	FailureRatio: 0.5,
	MaxRequests:  5,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
}

// BreakerConfigFrom converts the breaker section of the application config
func BreakerConfigFrom(cfg *appconfig.Config) CircuitBreakerConfig {
	b := cfg.Breaker
	return CircuitBreakerConfig{
		MinRequests:  uint32(b.MinRequests),
		FailureRatio: b.FailureRatio,
		MaxRequests:  uint32(b.HalfOpenProbes),
		Interval:     time.Duration(b.IntervalSeconds) * time.Second,
		Timeout:      time.Duration(b.OpenSeconds) * time.Second,
	}
}

// BreakerStatus is the health view of one breaker
type BreakerStatus struct {
	State    string `json:"state"`
	Requests uint32 `json:"requests"`
	Failures uint32 `json:"failures"`
}

// CircuitBreakerRegistry lazily creates one breaker per upstream name
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   CircuitBreakerConfig
}

// NewCircuitBreakerRegistry creates an empty registry
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	if config.MinRequests == 0 {
		config.MinRequests = DefaultCircuitBreakerConfig.MinRequests
	}
	if config.FailureRatio <= 0 {
		config.FailureRatio = DefaultCircuitBreakerConfig.FailureRatio
	}
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   config,
	}
}

// GetBreaker returns the breaker for name, creating it on first use
func (r *CircuitBreakerRegistry) GetBreaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg := r.config
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// Unknown symbols and cancelled requests say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: onBreakerStateChange,
	})
	r.breakers[name] = cb
	return cb
}

func onBreakerStateChange(name string, from, to gobreaker.State) {
	observability.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())

	metrics := observability.GetMetrics()
	metrics.SetCircuitBreakerState(name, stateToInt(to))
	if to == gobreaker.StateOpen {
		metrics.RecordCircuitBreakerTrip(name)
	}
}

// Execute runs fn through the named breaker. A rejected call returns an
// error wrapping ErrServiceUnavailable.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.GetBreaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.Warn("circuit breaker rejected request", "breaker", name, "reason", err.Error())
		return nil, fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, name, err)
	}
	return result, err
}

// Status reports every breaker created so far, keyed by name
func (r *CircuitBreakerRegistry) Status() map[string]BreakerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := make(map[string]BreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		status[name] = BreakerStatus{
			State:    cb.State().String(),
			Requests: counts.Requests,
			Failures: counts.TotalFailures,
		}
	}
	return status
}

// AnyOpen reports whether some upstream is currently cut off
func (r *CircuitBreakerRegistry) AnyOpen() bool {
	for _, s := range r.Status() {
		if s.State == gobreaker.StateOpen.String() {
			return true
		}
	}
	return false
}

var (
	globalRegistry *CircuitBreakerRegistry
	registryMu     sync.Mutex
)

// GetGlobalRegistry returns the process-wide registry
func GetGlobalRegistry() *CircuitBreakerRegistry {
	registryMu.Lock()
	defer registryMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	}
	return globalRegistry
}

// SetGlobalRegistry replaces the process-wide registry; nil resets it to defaults on next use
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	globalRegistry = r
}

// WithCircuitBreaker runs fn through the named breaker of the global registry
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	result, err := GetGlobalRegistry().Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, _ := result.(T)
	return typed, nil
}

// stateToInt maps a state to the gauge value: 0 closed, 1 half-open, 2 open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
