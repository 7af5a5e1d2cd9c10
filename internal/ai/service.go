package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"recruitflow/internal/config"
	"recruitflow/internal/errors"
)

// Observer receives the outcome of every model call.
type Observer interface {
	ObserveModelCall(ctx context.Context, operation string, duration time.Duration, usage *TokenUsage, err error)
}

// Service routes each operation to its provider and prompt set.
type Service struct {
	providers map[string]Provider
	prompts   map[string]*promptSet
	timeouts  map[string]time.Duration
	observer  Observer
	logger    *errors.Logger
}

var _ Completer = (*Service)(nil)

// NewService creates one provider per operation from the configuration.
func NewService(ctx context.Context, cfg *config.Config, logger *errors.Logger) (*Service, error) {
	providers := make(map[string]Provider, len(config.Operations))
	prompts := make(map[string]config.PromptConfig, len(config.Operations))
	timeouts := make(map[string]time.Duration, len(config.Operations))

	for _, op := range config.Operations {
		opCfg, err := cfg.GetOperationConfig(op)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid AI operation", err)
		}

		logger.Debug("Initializing model provider",
			"operation", op,
			"provider", opCfg.Provider,
			"model", opCfg.Model,
			"timeout", *opCfg.Timeout,
			"max_retries", *opCfg.MaxRetries)

		var provider Provider
		switch opCfg.Provider {
		case "gemini":
			provider, err = NewGeminiProvider(ctx, op, opCfg, cfg.Observability.HealthCheck.AIModelCheckTimeout, logger)
		default:
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("unsupported AI provider %q for operation %s", opCfg.Provider, op), nil)
		}
		if err != nil {
			return nil, err
		}

		providers[op] = provider
		prompts[op] = opCfg.Prompts
		timeouts[op] = *opCfg.Timeout
	}

	return newService(providers, prompts, timeouts, logger)
}

func newService(providers map[string]Provider, prompts map[string]config.PromptConfig, timeouts map[string]time.Duration, logger *errors.Logger) (*Service, error) {
	sets := make(map[string]*promptSet, len(providers))
	for op := range providers {
		set, err := newPromptSet(op, prompts[op])
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid prompt configuration", err)
		}
		sets[op] = set
	}
	return &Service{
		providers: providers,
		prompts:   sets,
		timeouts:  timeouts,
		logger:    logger,
	}, nil
}

// SetObserver registers the observer notified after every model call.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// Complete renders the operation's prompt, calls its provider and returns the
// raw text. Failures are external service errors; a per-call timeout maps to
// MODEL_TIMEOUT.
func (s *Service) Complete(ctx context.Context, operation string, data PromptData) (string, error) {
	provider, ok := s.providers[operation]
	if !ok {
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown AI operation: %s", operation), nil)
	}

	prompt, err := s.prompts[operation].render(data)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to render %s prompt", operation), err)
	}

	if timeout := s.timeouts[operation]; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := provider.Generate(ctx, prompt, GenerateOptions{JSON: jsonOperations[operation]})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errors.NewExternalServiceError(errors.ErrCodeInvalidModelOutput, "model returned an empty response", nil)
	}

	var usage *TokenUsage
	if resp != nil {
		usage = resp.Usage
	}
	if s.observer != nil {
		s.observer.ObserveModelCall(ctx, operation, time.Since(start), usage, err)
	}

	if err != nil {
		classified := classifyError(operation, err)
		s.logger.LogError(classified, "Model call failed", "operation", operation)
		return "", classified
	}

	s.logger.Debug("Model call completed",
		"operation", operation,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_length", len(resp.Text))
	return resp.Text, nil
}

func classifyError(operation string, err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.WithContext("operation", operation)
	}

	code, message := errors.ErrCodeModelFailed, "model call failed"
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		code, message = errors.ErrCodeModelTimeout, "model call timed out"
	case isBreakerRejection(err):
		code, message = errors.ErrCodeModelUnavailable, "model temporarily unavailable"
	}
	return errors.NewExternalServiceError(code, message, err).WithContext("operation", operation)
}

// ModelInfo checks every configured model.
func (s *Service) ModelInfo(ctx context.Context) map[string]*ModelInfo {
	info := make(map[string]*ModelInfo, len(s.providers))
	for op, provider := range s.providers {
		info[op] = provider.GetModelInfo(ctx)
	}
	return info
}

// BreakerStats reports circuit breaker state for providers that expose it.
func (s *Service) BreakerStats() map[string]any {
	stats := make(map[string]any, len(s.providers))
	for op, provider := range s.providers {
		if b, ok := provider.(interface{ BreakerStats() map[string]any }); ok {
			stats[op] = b.BreakerStats()
		}
	}
	return stats
}

// Close closes every provider.
func (s *Service) Close() error {
	var errs []error
	for _, provider := range s.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
