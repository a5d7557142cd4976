// Package breaker builds circuit breakers for outbound API clients and keeps
// their Prometheus state in sync.
package breaker

import (
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sundayezeilo/linkshield/internal/metrics"
)

// Settings tunes a breaker. Zero values fall back to defaults.
type Settings struct {
	MaxRequests  uint32        // half-open trial requests (default 3)
	Interval     time.Duration // closed-state count reset (default 1m)
	OpenTimeout  time.Duration // open to half-open (default 30s)
	MinRequests  uint32        // minimum sample before tripping (default 10)
	FailureRatio float64       // trip threshold (default 0.6)
	Logger       *slog.Logger
}

// Breaker wraps a gobreaker.CircuitBreaker with metrics.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

func New[T any](name string, s Settings) *Breaker[T] {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Breaker[T]{cb: cb, name: name}
}

// Execute runs fn through the breaker. Rejections surface as
// gobreaker.ErrOpenState or gobreaker.ErrTooManyRequests.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case IsRejected(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return res, err
}

func (b *Breaker[T]) State() gobreaker.State { return b.cb.State() }

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
