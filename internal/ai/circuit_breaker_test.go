package ai

import (
	"fmt"
	"testing"
	"time"

	"recruitflow/internal/config"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func breakerConfig(minRequests uint32, threshold float64) *config.CircuitBreakerConfig {
	return &config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      minRequests,
		FailureThreshold: threshold,
	}
}

func TestGenerateBreakerTrips(t *testing.T) {
	b := NewGenerateBreaker("extract", breakerConfig(3, 0.6), nil)
	require.NotNil(t, b)
	assert.True(t, b.IsHealthy())

	fail := func() (*genai.GenerateContentResponse, error) { return nil, fmt.Errorf("boom") }
	for range 3 {
		_, err := b.Execute(fail)
		require.Error(t, err)
	}

	assert.False(t, b.IsHealthy())
	_, err := b.Execute(func() (*genai.GenerateContentResponse, error) {
		t.Fatal("call must not run while the breaker is open")
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, isBreakerRejection(err))
}

func TestBreakerStaysClosedBelowMinRequests(t *testing.T) {
	b := NewGenerateBreaker("assess", breakerConfig(5, 0.5), nil)
	for range 4 {
		_, _ = b.Execute(func() (*genai.GenerateContentResponse, error) { return nil, fmt.Errorf("boom") })
	}
	assert.True(t, b.IsHealthy())

	stats := b.Stats()
	assert.Equal(t, "ai-assess", stats["name"])
	assert.Equal(t, "closed", stats["state"])
	assert.Equal(t, true, stats["enabled"])
}

func TestDisabledBreakerIsPassThrough(t *testing.T) {
	cfg := breakerConfig(1, 0.1)
	cfg.Enabled = false

	b := NewGenerateBreaker("email", cfg, nil)
	assert.Nil(t, b)
	assert.Nil(t, NewGenerateBreaker("email", nil, nil))

	calls := 0
	for range 10 {
		_, err := b.Execute(func() (*genai.GenerateContentResponse, error) {
			calls++
			return nil, fmt.Errorf("boom")
		})
		assert.Error(t, err)
	}
	assert.Equal(t, 10, calls)
	assert.True(t, b.IsHealthy())
	assert.Equal(t, map[string]any{"enabled": false}, b.Stats())
}

func TestModelInfoBreakerIsLenient(t *testing.T) {
	b := NewModelInfoBreaker("interview", breakerConfig(1, 0.1), nil)
	for range 4 {
		_, _ = b.Execute(func() (*genai.Model, error) { return nil, fmt.Errorf("boom") })
	}
	assert.True(t, b.IsHealthy(), "model lookups need five requests before tripping")

	_, _ = b.Execute(func() (*genai.Model, error) { return nil, fmt.Errorf("boom") })
	assert.False(t, b.IsHealthy())
}
