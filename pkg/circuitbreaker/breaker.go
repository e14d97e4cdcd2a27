// Package circuitbreaker wraps gobreaker with the settings shared by the
// services' outbound calls.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	Name string
	// ConsecutiveFailures trips the breaker. Defaults to 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open. Defaults to 30s.
	OpenTimeout time.Duration
	// HalfOpenRequests allowed through while probing. Defaults to 1.
	HalfOpenRequests uint32
	Logger           *slog.Logger
}

type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](s Settings) *Breaker[T] {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	threshold := s.ConsecutiveFailures
	return &Breaker[T]{
		cb: gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
			Name:         s.Name,
			MaxRequests:  s.HalfOpenRequests,
			Timeout:      s.OpenTimeout,
			IsSuccessful: isSuccessful,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// isSuccessful does not hold a caller walking away against the dependency.
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// Execute runs fn through the breaker. Rejections surface as ErrOpen.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, ErrOpen
	}
	return v, err
}

func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}
