package ai

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"recruitflow/internal/config"
	"recruitflow/internal/errors"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type fakeProvider struct {
	mu      sync.Mutex
	prompts []Prompt
	opts    []GenerateOptions
	text    string
	usage   *TokenUsage
	err     error
	delay   time.Duration
}

func (f *fakeProvider) Generate(ctx context.Context, prompt Prompt, opts GenerateOptions) (*Response, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.text, Usage: f.usage}, nil
}

func (f *fakeProvider) GetModelInfo(context.Context) *ModelInfo {
	return &ModelInfo{Name: "fake-model", Available: f.err == nil}
}

func (f *fakeProvider) Close() error { return nil }

type recordingObserver struct {
	operations []string
	usage      []*TokenUsage
	errs       []error
}

func (r *recordingObserver) ObserveModelCall(_ context.Context, op string, _ time.Duration, usage *TokenUsage, err error) {
	r.operations = append(r.operations, op)
	r.usage = append(r.usage, usage)
	r.errs = append(r.errs, err)
}

func newTestService(t *testing.T, providers map[string]Provider, prompts map[string]config.PromptConfig, timeout time.Duration) *Service {
	t.Helper()
	timeouts := make(map[string]time.Duration)
	for op := range providers {
		timeouts[op] = timeout
	}
	svc, err := newService(providers, prompts, timeouts, errors.Discard())
	require.NoError(t, err)
	return svc
}

func TestServiceCompleteRendersDefaultPrompts(t *testing.T) {
	extract := &fakeProvider{text: `{"name":"Jane"}`, usage: &TokenUsage{TotalTokens: 42}}
	email := &fakeProvider{text: "SUBJECT: Hi\nBODY:\nHello"}
	svc := newTestService(t, map[string]Provider{
		config.OperationExtract: extract,
		config.OperationEmail:   email,
	}, nil, time.Second)

	observer := &recordingObserver{}
	svc.SetObserver(observer)

	out, err := svc.Complete(context.Background(), config.OperationExtract, PromptData{Text: "Jane Doe, Go developer"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Jane"}`, out)

	require.Len(t, extract.prompts, 1)
	assert.Contains(t, extract.prompts[0].User, "Jane Doe, Go developer")
	assert.Contains(t, extract.prompts[0].System, "CV parser")
	assert.True(t, extract.opts[0].JSON)

	_, err = svc.Complete(context.Background(), config.OperationEmail, PromptData{
		EmailType: "rejection",
		Candidate: "Name: Jane Doe",
		Job:       "Backend Engineer at Acme",
	})
	require.NoError(t, err)
	assert.Contains(t, email.prompts[0].User, "rejection email")
	assert.Contains(t, email.prompts[0].User, "Backend Engineer at Acme")
	assert.False(t, email.opts[0].JSON)

	assert.Equal(t, []string{config.OperationExtract, config.OperationEmail}, observer.operations)
	assert.Equal(t, int64(42), observer.usage[0].TotalTokens)
}

func TestServiceInterviewPromptPerCategory(t *testing.T) {
	provider := &fakeProvider{text: "[]"}
	svc := newTestService(t, map[string]Provider{config.OperationInterview: provider}, nil, time.Second)

	for _, category := range []string{"technical", "behavioral", "role_specific"} {
		_, err := svc.Complete(context.Background(), config.OperationInterview, PromptData{Category: category, Count: 3})
		require.NoError(t, err)
	}

	require.Len(t, provider.prompts, 3)
	assert.Contains(t, provider.prompts[0].User, "Generate 3 technical interview questions")
	assert.Contains(t, provider.prompts[1].User, "STAR")
	assert.Contains(t, provider.prompts[2].User, "specific role")
}

func TestServiceCustomPrompts(t *testing.T) {
	provider := &fakeProvider{text: "{}"}
	svc := newTestService(t, map[string]Provider{config.OperationAssess: provider}, map[string]config.PromptConfig{
		config.OperationAssess: {System: "Be brief.", User: "Rate {{.Candidate}} for {{.Job}}"},
	}, time.Second)

	_, err := svc.Complete(context.Background(), config.OperationAssess, PromptData{Candidate: "Ana", Job: "SRE"})
	require.NoError(t, err)
	assert.Equal(t, Prompt{System: "Be brief.", User: "Rate Ana for SRE"}, provider.prompts[0])
}

func TestNewServiceRejectsBrokenTemplate(t *testing.T) {
	_, err := newService(map[string]Provider{config.OperationAssess: &fakeProvider{}},
		map[string]config.PromptConfig{config.OperationAssess: {User: "{{.Candidate"}}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestServiceCompleteErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		timeout  time.Duration
		code     string
	}{
		{name: "timeout", provider: &fakeProvider{delay: time.Second}, timeout: 10 * time.Millisecond, code: errors.ErrCodeModelTimeout},
		{name: "open breaker", provider: &fakeProvider{err: gobreaker.ErrOpenState}, code: errors.ErrCodeModelUnavailable},
		{name: "quota", provider: &fakeProvider{err: &googleapi.Error{Code: http.StatusTooManyRequests}}, code: errors.ErrCodeModelFailed},
		{name: "empty output", provider: &fakeProvider{text: "  "}, code: errors.ErrCodeInvalidModelOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, map[string]Provider{config.OperationAssess: tt.provider}, nil, tt.timeout)
			_, err := svc.Complete(context.Background(), config.OperationAssess, PromptData{})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeExternalService))
			assert.Equal(t, tt.code, errors.Code(err))
		})
	}
}

func TestServiceUnknownOperation(t *testing.T) {
	svc := newTestService(t, map[string]Provider{}, nil, 0)
	_, err := svc.Complete(context.Background(), "summarize", PromptData{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewServiceRequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.AI.APIKey = ""

	_, err := NewService(context.Background(), cfg, errors.Discard())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMissingAPIKey, errors.Code(err))
	assert.True(t, errors.IsFatal(err))
}

func TestNewServiceUnsupportedProvider(t *testing.T) {
	cfg := config.Default()
	cfg.AI.APIKey = "key"
	cfg.AI.Assess.Provider = "openai"

	_, err := NewService(context.Background(), cfg, errors.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai")
}

func TestServiceModelInfo(t *testing.T) {
	svc := newTestService(t, map[string]Provider{
		config.OperationExtract: &fakeProvider{},
		config.OperationAssess:  &fakeProvider{err: fmt.Errorf("down")},
	}, nil, 0)

	info := svc.ModelInfo(context.Background())
	assert.True(t, info[config.OperationExtract].Available)
	assert.False(t, info[config.OperationAssess].Available)
	assert.NoError(t, svc.Close())
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"unavailable", fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusServiceUnavailable}), true},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain", fmt.Errorf("invalid argument"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableError(tt.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	assert.GreaterOrEqual(t, backoff(1), time.Second)
	assert.Less(t, backoff(1), 1200*time.Millisecond)
	assert.GreaterOrEqual(t, backoff(3), 4*time.Second)
	assert.Equal(t, maxBackoff, backoff(10))
	assert.Equal(t, maxBackoff, backoff(80))
}
