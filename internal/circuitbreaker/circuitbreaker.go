package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	Name                string
	MaxRequests         uint32        // probes allowed while half-open
	Interval            time.Duration // closed-state counter reset period
	Timeout             time.Duration // open -> half-open delay
	ConsecutiveFailures uint32
	// IsSuccessful decides which errors count against the breaker; nil means only nil errors succeed.
	IsSuccessful func(err error) bool
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             10 * time.Second,
		ConsecutiveFailures: 5,
	}
}

func New[T any](s Settings, logger *slog.Logger) *gobreaker.CircuitBreaker[T] {
	threshold := s.ConsecutiveFailures
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: s.IsSuccessful,
	})
}

// IsOpen reports whether err was produced by the breaker rejecting the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
