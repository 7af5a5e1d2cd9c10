// Package server exposes the recruitment pipeline over HTTP.
package server

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"recruitflow/internal/ai"
	"recruitflow/internal/config"
	recruitErrors "recruitflow/internal/errors"
	"recruitflow/internal/observability"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/storage"
	"recruitflow/internal/types"
)

// DocumentPayload is one uploaded CV. Content is base64 in JSON.
type DocumentPayload struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// RunRequest starts a pipeline run.
type RunRequest struct {
	RunID     string               `json:"run_id,omitempty"`
	Job       types.JobRequirement `json:"job"`
	Documents []DocumentPayload    `json:"documents"`
}

// RunAccepted is the response to a started run.
type RunAccepted struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
	ResultURL string `json:"result_url"`
}

// ScoreRequest scores already extracted candidates against a job.
type ScoreRequest struct {
	Job        types.JobRequirement    `json:"job"`
	Candidates []types.CandidateRecord `json:"candidates"`
}

// ScoreResponse holds the scores and the candidates that could not be scored.
type ScoreResponse struct {
	Scores []types.ScoredCandidate `json:"scores"`
	Errors []pipeline.StageError   `json:"errors"`
}

// ShortlistRequest ranks scored candidates. Unset limits take the
// configured defaults.
type ShortlistRequest struct {
	Scores        []types.ScoredCandidate `json:"scores"`
	MinimumScore  *float64                `json:"minimum_score,omitempty"`
	MaxCandidates *int                    `json:"max_candidates,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ModelStatus reports the health of the model service.
type ModelStatus interface {
	ModelInfo(ctx context.Context) map[string]*ai.ModelInfo
	BreakerStats() map[string]any
}

// ResultHandler receives the final state of every run started over HTTP.
type ResultHandler func(ctx context.Context, state pipeline.State, job types.JobRequirement) error

// Dependencies are the collaborators the handlers use.
type Dependencies struct {
	Sequencer *pipeline.Sequencer
	Scorer    pipeline.Scorer
	Store     storage.RunStore
	Telemetry *observability.Manager
	// Model is nil when the server runs without a model.
	Model    ModelStatus
	OnResult ResultHandler
	// KeySource rotates the API keys when set.
	KeySource SecretSource
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	AppConfig *config.Config

	// API Authentication
	keysMu  sync.RWMutex
	apiKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Logger *recruitErrors.Logger

	deps      Dependencies
	runs      *runRegistry
	runCtx    context.Context
	cancelRun context.CancelFunc
	inflight  sync.WaitGroup
	startedAt time.Time
	out       io.Writer
}

// NewServer creates a new Server from the application configuration
func NewServer(appCfg *config.Config, version string, deps Dependencies, logger *recruitErrors.Logger) *Server {
	var rateLimiter *RateLimiter
	if appCfg.Server.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			appCfg.Server.RateLimit.RequestsPerMin,
			appCfg.Server.RateLimit.Window,
			appCfg.Server.RateLimit.BurstCapacity,
			logger,
		)
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemoryStore()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Host:           appCfg.Server.Host,
		Port:           appCfg.Server.Port,
		Version:        version,
		AppConfig:      appCfg,
		ReadTimeout:    appCfg.Server.ReadTimeout,
		WriteTimeout:   appCfg.Server.WriteTimeout,
		IdleTimeout:    appCfg.Server.IdleTimeout,
		MaxRequestSize: appCfg.Server.MaxRequestSize,
		RateLimit:      &appCfg.Server.RateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		deps:           deps,
		runs:           newRunRegistry(),
		runCtx:         runCtx,
		cancelRun:      cancel,
		startedAt:      time.Now(),
		out:            os.Stdout,
	}
	s.SetAPIKeys(appCfg.Server.APIKeys)
	return s
}

// SetAPIKeys replaces the accepted API keys. An empty list disables
// authentication.
func (s *Server) SetAPIKeys(keys []string) {
	apiKeyMap := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	s.keysMu.Lock()
	s.apiKeys = apiKeyMap
	s.keysMu.Unlock()
}

func (s *Server) keyCount() int {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return len(s.apiKeys)
}

// validKey reports whether key is accepted, and whether authentication is on.
func (s *Server) validKey(key string) (valid, enabled bool) {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return s.apiKeys[key], len(s.apiKeys) > 0
}
