package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"recruitflow/internal/ai"
	"recruitflow/internal/config"
	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/scoring"
	"recruitflow/internal/shortlist"
	"recruitflow/internal/storage"
	"recruitflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skillsExtractor reads the document body as a comma-separated skill list.
// When gate is set, extraction waits for it to close.
type skillsExtractor struct {
	gate chan struct{}
}

func (e skillsExtractor) Extract(ctx context.Context, doc types.Document) (types.CandidateRecord, error) {
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return types.CandidateRecord{}, ctx.Err()
		}
	}
	name := strings.TrimSuffix(doc.Name, ".txt")
	return candidate(name, strings.Split(string(doc.Data), ",")...), nil
}

func candidate(name string, skills ...string) types.CandidateRecord {
	return types.CandidateRecord{
		ID:               name,
		Name:             name,
		Email:            name + "@example.com",
		Skills:           skills,
		ExperienceYears:  6,
		Education:        []types.EducationEntry{{Degree: "BSc"}},
		ExtractionMethod: types.ExtractionModel,
		FileName:         name + ".txt",
	}
}

type fakeModel struct {
	available bool
}

func (m fakeModel) ModelInfo(context.Context) map[string]*ai.ModelInfo {
	info := &ai.ModelInfo{Name: "gemini-2.0-flash", Available: m.available}
	if !m.available {
		info.Error = "model not found"
	}
	return map[string]*ai.ModelInfo{"extraction": info}
}

func (m fakeModel) BreakerStats() map[string]any {
	return map[string]any{"extraction": map[string]any{"state": "closed"}}
}

type testServer struct {
	*Server
	handler http.Handler

	mu      sync.Mutex
	results []pipeline.State
}

func newTestServer(t *testing.T, cfg *config.Config, extractor pipeline.Extractor) *testServer {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	logger := errors.Discard()

	engine, err := scoring.NewEngine(cfg.Scoring)
	require.NoError(t, err)
	scorer := scoring.NewScorer(engine, nil, true, logger)
	seq, err := pipeline.New(pipeline.Options{
		Extractor: extractor,
		Scorer:    scorer,
		Ranker:    shortlist.NewRanker(cfg.Pipeline.MinimumScore, cfg.Pipeline.MaxCandidates),
		Workers:   2,
		Logger:    logger,
	})
	require.NoError(t, err)

	ts := &testServer{}
	ts.Server = NewServer(cfg, "test", Dependencies{
		Sequencer: seq,
		Scorer:    scorer,
		Store:     storage.NewMemoryStore(),
		OnResult: func(_ context.Context, state pipeline.State, _ types.JobRequirement) error {
			ts.mu.Lock()
			ts.results = append(ts.results, state)
			ts.mu.Unlock()
			return nil
		},
	}, logger)
	ts.out = io.Discard
	ts.handler = ts.Handler()

	t.Cleanup(func() {
		ts.stopBackground(nil)
		ts.inflight.Wait()
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func runRequest(id string) RunRequest {
	return RunRequest{
		RunID: id,
		Job:   types.DemoJob(),
		Documents: []DocumentPayload{
			{Name: "alice.txt", Content: []byte("Python,JavaScript,React,SQL,Git,AWS,Docker")},
			{Name: "bob.txt", Content: []byte("Excel")},
		},
	}
}

func TestRunLifecycle(t *testing.T) {
	ts := newTestServer(t, nil, skillsExtractor{})

	rec := ts.do(t, http.MethodPost, "/runs", runRequest("run-1"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode[RunAccepted](t, rec)
	assert.Equal(t, "run-1", accepted.RunID)
	assert.Equal(t, "/runs/run-1/result", accepted.ResultURL)

	require.Eventually(t, func() bool {
		return ts.do(t, http.MethodGet, accepted.ResultURL, nil).Code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	state := decode[pipeline.State](t, ts.do(t, http.MethodGet, accepted.ResultURL, nil))
	assert.Equal(t, pipeline.StepCompleted, state.Step)
	assert.Equal(t, 100, state.Progress)
	require.NotEmpty(t, state.Shortlist.Entries)
	assert.Equal(t, "alice", state.Shortlist.Entries[0].Candidate.Name)
	for _, entry := range state.Shortlist.Entries {
		assert.NotEqual(t, "bob", entry.Candidate.Name)
	}

	report := decode[pipeline.Report](t, ts.do(t, http.MethodGet, "/runs/run-1", nil))
	assert.Equal(t, 2, report.Parsed)
	assert.Equal(t, 2, report.Scored)

	require.Eventually(t, func() bool {
		ts.mu.Lock()
		defer ts.mu.Unlock()
		return len(ts.results) == 1
	}, 5*time.Second, 10*time.Millisecond)

	rec = ts.do(t, http.MethodPost, "/runs", runRequest("run-1"))
	assert.Equal(t, http.StatusConflict, rec.Code, "run IDs are unique")
}

func TestRunInProgress(t *testing.T) {
	gate := make(chan struct{})
	ts := newTestServer(t, nil, skillsExtractor{gate: gate})

	rec := ts.do(t, http.MethodPost, "/runs", runRequest(""))
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[RunAccepted](t, rec).RunID
	require.NotEmpty(t, id, "a run ID is assigned")

	require.Eventually(t, func() bool {
		report := decode[pipeline.Report](t, ts.do(t, http.MethodGet, "/runs/"+id, nil))
		return report.Step == pipeline.StepParsing
	}, 5*time.Second, 10*time.Millisecond)

	rec = ts.do(t, http.MethodGet, "/runs/"+id+"/result", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "parsing (10%)")

	rec = ts.do(t, http.MethodPost, "/runs", runRequest(id))
	assert.Equal(t, http.StatusConflict, rec.Code, "a live run keeps its ID")

	close(gate)
	require.Eventually(t, func() bool {
		return ts.do(t, http.MethodGet, "/runs/"+id+"/result", nil).Code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunErrors(t *testing.T) {
	ts := newTestServer(t, nil, skillsExtractor{})

	rec := ts.do(t, http.MethodGet, "/runs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.ErrCodeRunNotFound, decode[ErrorResponse](t, rec).Code)

	noDocs := runRequest("")
	noDocs.Documents = nil
	rec = ts.do(t, http.MethodPost, "/runs", noDocs)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	badJob := runRequest("")
	badJob.Job.Title = ""
	rec = ts.do(t, http.MethodPost, "/runs", badJob)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unnamed := runRequest("")
	unnamed.Documents[0].Name = " "
	rec = ts.do(t, http.MethodPost, "/runs", unnamed)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "document 1 has no name")

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/runs/unknown", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestScoreHandler(t *testing.T) {
	ts := newTestServer(t, nil, skillsExtractor{})

	rec := ts.do(t, http.MethodPost, "/score", ScoreRequest{
		Job: types.DemoJob(),
		Candidates: []types.CandidateRecord{
			candidate("alice", "Python", "JavaScript", "React", "SQL", "Git"),
			candidate("bob", "Excel"),
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ScoreResponse](t, rec)
	require.Len(t, resp.Scores, 2)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, "alice", resp.Scores[0].Candidate.Name)
	assert.Greater(t, resp.Scores[0].Score.OverallScore, resp.Scores[1].Score.OverallScore)
	assert.ElementsMatch(t, []string{"Python", "JavaScript", "React", "SQL", "Git"}, resp.Scores[0].Score.MatchedSkills)

	rec = ts.do(t, http.MethodPost, "/score", ScoreRequest{Job: types.DemoJob()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/score", ScoreRequest{Job: types.JobRequirement{}, Candidates: []types.CandidateRecord{candidate("x")}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func scored(name string, score float64) types.ScoredCandidate {
	return types.ScoredCandidate{
		Candidate: types.CandidateRecord{ID: name, Name: name},
		Score:     types.ScoreResult{CandidateID: name, CandidateName: name, OverallScore: score},
	}
}

func TestShortlistHandler(t *testing.T) {
	ts := newTestServer(t, nil, skillsExtractor{})
	scores := []types.ScoredCandidate{scored("a", 55), scored("b", 91), scored("c", 72), scored("d", 64)}

	t.Run("configured limits", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/shortlist", ShortlistRequest{Scores: scores})
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[types.Shortlist](t, rec)
		require.Len(t, list.Entries, 3)
		assert.Equal(t, "b", list.Entries[0].Candidate.Name)
		assert.Equal(t, 1, list.Entries[0].Rank)
		assert.Equal(t, 60.0, list.Summary.MinThreshold)
	})

	t.Run("request limits", func(t *testing.T) {
		minimum, maxCount := 70.0, 1
		rec := ts.do(t, http.MethodPost, "/shortlist", ShortlistRequest{Scores: scores, MinimumScore: &minimum, MaxCandidates: &maxCount})
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[types.Shortlist](t, rec)
		require.Len(t, list.Entries, 1)
		assert.Equal(t, 2, list.Summary.CountPassing)
	})

	t.Run("zero max candidates", func(t *testing.T) {
		maxCount := 0
		rec := ts.do(t, http.MethodPost, "/shortlist", ShortlistRequest{Scores: scores, MaxCandidates: &maxCount})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"entries":[]`)
		list := decode[types.Shortlist](t, rec)
		assert.Empty(t, list.Entries)
		assert.Equal(t, 0, list.Summary.CountSelected)
		assert.Equal(t, 3, list.Summary.CountPassing)
	})

	t.Run("threshold above every score", func(t *testing.T) {
		minimum := 150.0
		rec := ts.do(t, http.MethodPost, "/shortlist", ShortlistRequest{Scores: scores, MinimumScore: &minimum})
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[types.Shortlist](t, rec)
		assert.Empty(t, list.Entries)
		assert.Equal(t, 0, list.Summary.CountSelected)
	})

	t.Run("negative minimum", func(t *testing.T) {
		minimum := -1.0
		rec := ts.do(t, http.MethodPost, "/shortlist", ShortlistRequest{Scores: scores, MinimumScore: &minimum})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.Default()
	cfg.Server.APIKeys = []string{"secret-key-1234"}
	ts := newTestServer(t, cfg, skillsExtractor{})
	body := ShortlistRequest{Scores: []types.ScoredCandidate{scored("a", 80)}}

	tests := []struct {
		name    string
		headers []string
		want    int
	}{
		{name: "missing key", want: http.StatusUnauthorized},
		{name: "wrong key", headers: []string{"X-API-Key", "nope"}, want: http.StatusUnauthorized},
		{name: "header key", headers: []string{"X-API-Key", "secret-key-1234"}, want: http.StatusOK},
		{name: "bearer token", headers: []string{"Authorization", "Bearer secret-key-1234"}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/shortlist", body, tt.headers...)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil).Code, "health is public")

	ts.SetAPIKeys([]string{"rotated-key-5678"})
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/shortlist", body, "X-API-Key", "secret-key-1234").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/shortlist", body, "X-API-Key", "rotated-key-5678").Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true, Window: time.Minute}
	ts := newTestServer(t, cfg, skillsExtractor{})
	body := ShortlistRequest{Scores: []types.ScoredCandidate{scored("a", 80)}}

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/shortlist", body).Code)
	rec := ts.do(t, http.MethodPost, "/shortlist", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = ts.do(t, http.MethodPost, "/shortlist", body, "X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, http.StatusOK, rec.Code, "each client IP has its own bucket")

	stats := decode[map[string]any](t, ts.do(t, http.MethodGet, "/stats", nil))
	limiting := stats["rate_limiting"].(map[string]any)
	assert.Equal(t, 2.0, limiting["active_limiters"])
}

func TestRequestSizeLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxRequestSize = 64
	ts := newTestServer(t, cfg, skillsExtractor{})

	rec := ts.do(t, http.MethodPost, "/runs", runRequest("too-big"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, errors.ErrCodeFileTooLarge, decode[ErrorResponse](t, rec).Code)
}

func TestHealthHandler(t *testing.T) {
	t.Run("without model", func(t *testing.T) {
		ts := newTestServer(t, nil, skillsExtractor{})
		rec := ts.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		health := decode[map[string]any](t, rec)
		assert.Equal(t, "healthy", health["status"])
		assert.Equal(t, "test", health["version"])
	})

	t.Run("model unavailable", func(t *testing.T) {
		ts := newTestServer(t, nil, skillsExtractor{})
		ts.deps.Model = fakeModel{available: false}
		rec := ts.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		health := decode[map[string]any](t, rec)
		assert.Equal(t, "degraded", health["status"])
		assert.Contains(t, health, "circuit_breakers")
	})

	t.Run("model available", func(t *testing.T) {
		ts := newTestServer(t, nil, skillsExtractor{})
		ts.deps.Model = fakeModel{available: true}
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil).Code)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.NotFound("r1"), http.StatusNotFound},
		{errors.NewValidationError(errors.ErrCodeInvalidRequest, "bad", nil), http.StatusBadRequest},
		{errors.NewScoringInputError(errors.ErrCodeInvalidJob, "bad job", nil), http.StatusBadRequest},
		{errors.NewExtractionError(errors.ErrCodeCorruptDocument, "corrupt", nil), http.StatusUnprocessableEntity},
		{errors.NewExternalServiceError(errors.ErrCodeModelFailed, "down", nil), http.StatusBadGateway},
		{errors.NewExternalServiceError(errors.ErrCodeModelTimeout, "slow", nil), http.StatusGatewayTimeout},
		{errors.NewInternalError(errors.ErrCodeStageFailed, "boom", nil), http.StatusInternalServerError},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	gate := make(chan struct{})
	ts := newTestServer(t, cfg, skillsExtractor{gate: gate})

	rec := ts.do(t, http.MethodPost, "/runs", runRequest("shutdown-run"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, 0, ts.runs.len(), "in-flight runs are cancelled and awaited")
}
