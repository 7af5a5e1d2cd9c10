package ai

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"recruitflow/internal/config"
	"recruitflow/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const maxBackoff = 30 * time.Second

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client       *genai.Client
	operation    string
	config       config.OperationAIConfig
	checkTimeout time.Duration
	breaker      *Breaker[*genai.GenerateContentResponse]
	modelBreaker *Breaker[*genai.Model]
	logger       *errors.Logger
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini provider for one operation. cfg must have
// its defaults applied.
func NewGeminiProvider(ctx context.Context, operation string, cfg config.OperationAIConfig, checkTimeout time.Duration, logger *errors.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			fmt.Sprintf("no API key configured for the %s operation", operation), nil)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.NewExternalServiceError(errors.ErrCodeModelUnavailable, "failed to create Gemini client", err)
	}
	if checkTimeout <= 0 {
		checkTimeout = 10 * time.Second
	}

	return &GeminiProvider{
		client:       client,
		operation:    operation,
		config:       cfg,
		checkTimeout: checkTimeout,
		breaker:      NewGenerateBreaker(operation, cfg.CircuitBreaker, logger),
		modelBreaker: NewModelInfoBreaker(operation, cfg.CircuitBreaker, logger),
		logger:       logger,
	}, nil
}

// Generate sends one prompt to the model with tracing, retries and the circuit breaker.
func (g *GeminiProvider) Generate(ctx context.Context, prompt Prompt, opts GenerateOptions) (*Response, error) {
	ctx, span := otel.Tracer("recruitflow.ai.gemini").Start(ctx, "gemini."+g.operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.String("ai.operation", g.operation),
		attribute.Int("ai.prompt_length", len(prompt.User)),
		attribute.Bool("ai.json", opts.JSON),
	)

	genCfg := g.generateConfig(opts)
	userText := prompt.User
	if prompt.System != "" {
		if g.useSystemPrompts() {
			genCfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
		} else {
			userText = prompt.System + "\n\n" + prompt.User
		}
	}

	result, err := g.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(userText), genCfg)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	return &Response{Text: result.Text(), Usage: usage}, nil
}

func (g *GeminiProvider) generateConfig(opts GenerateOptions) *genai.GenerateContentConfig {
	genCfg := &genai.GenerateContentConfig{}
	if g.config.Temperature != nil && *g.config.Temperature > 0 {
		temperature := *g.config.Temperature
		genCfg.Temperature = &temperature
	}
	if g.config.MaxTokens != nil && *g.config.MaxTokens > 0 {
		genCfg.MaxOutputTokens = *g.config.MaxTokens
	}
	if opts.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}
	return genCfg
}

func (g *GeminiProvider) useSystemPrompts() bool {
	return g.config.UseSystemPrompts == nil || *g.config.UseSystemPrompts
}

func (g *GeminiProvider) maxRetries() int {
	if g.config.MaxRetries == nil || *g.config.MaxRetries < 0 {
		return 0
	}
	return *g.config.MaxRetries
}

// executeWithRetry retries retryable failures with exponential backoff and jitter.
func (g *GeminiProvider) executeWithRetry(ctx context.Context, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	retries := g.maxRetries()
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying model call",
				"operation", g.operation,
				"attempt", attempt,
				"max_retries", retries,
				"error", lastErr.Error())

			select {
			case <-time.After(backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			break
		}
	}

	return nil, fmt.Errorf("%s call failed after %d attempt(s): %w", g.operation, retries+1, lastErr)
}

// backoff returns 2^(attempt-1) seconds plus up to 10% jitter, capped at maxBackoff.
func backoff(attempt int) time.Duration {
	base := time.Second << (attempt - 1)
	if base <= 0 || base > maxBackoff {
		base = maxBackoff
	}
	var jitter time.Duration
	if n, err := rand.Int(rand.Reader, big.NewInt(int64(base/10)+1)); err == nil {
		jitter = time.Duration(n.Int64())
	}
	return min(base+jitter, maxBackoff)
}

// isRetryableError reports whether a failed model call may succeed when repeated.
func isRetryableError(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var genaiErr genai.APIError
	if stderrors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}
	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// GetModelInfo checks that the configured model is reachable
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, g.checkTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		info.Error = fmt.Sprintf("failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"operation", g.operation,
			"model", g.config.Model,
			"error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version
	return info
}

// BreakerStats reports both breakers of the provider.
func (g *GeminiProvider) BreakerStats() map[string]any {
	return map[string]any{
		"generate":   g.breaker.Stats(),
		"model_info": g.modelBreaker.Stats(),
		"healthy":    g.breaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

// Close releases the provider. The genai client holds no connections between calls.
func (g *GeminiProvider) Close() error {
	return nil
}

func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}
	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
