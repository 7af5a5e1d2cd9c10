package ai

import (
	stderrors "errors"
	"fmt"

	"recruitflow/internal/config"
	"recruitflow/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// Breaker guards calls returning T. A nil Breaker runs calls unguarded.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

type tripRule func(counts gobreaker.Counts) bool

// ratioRule trips once minRequests have been seen and the failure ratio reaches threshold.
func ratioRule(minRequests uint32, threshold float64) tripRule {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests == 0 {
			return false
		}
		ratio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= minRequests && ratio >= threshold
	}
}

func newBreaker[T any](name string, cfg *config.CircuitBreakerConfig, trip tripRule, logger *errors.Logger) *Breaker[T] {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: trip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("Circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String())
			}
		},
	}
	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// NewGenerateBreaker creates the breaker guarding content generation of an operation.
func NewGenerateBreaker(operation string, cfg *config.CircuitBreakerConfig, logger *errors.Logger) *Breaker[*genai.GenerateContentResponse] {
	if cfg == nil {
		return nil
	}
	return newBreaker[*genai.GenerateContentResponse](fmt.Sprintf("ai-%s", operation), cfg,
		ratioRule(cfg.MinRequests, cfg.FailureThreshold), logger)
}

// NewModelInfoBreaker creates the breaker guarding model lookups. Health probes
// tolerate more failures than generation before opening.
func NewModelInfoBreaker(operation string, cfg *config.CircuitBreakerConfig, logger *errors.Logger) *Breaker[*genai.Model] {
	return newBreaker[*genai.Model](fmt.Sprintf("ai-model-%s", operation), cfg, ratioRule(5, 0.8), logger)
}

// Execute runs fn under the breaker.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Stats reports the breaker name, state and counts.
func (b *Breaker[T]) Stats() map[string]any {
	if b == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy reports whether the breaker is closed.
func (b *Breaker[T]) IsHealthy() bool {
	return b == nil || b.cb.State() == gobreaker.StateClosed
}

// isBreakerRejection reports whether err came from an open or saturated breaker.
func isBreakerRejection(err error) bool {
	return stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests)
}
