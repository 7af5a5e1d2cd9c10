package pipeline

import (
	"recruitflow/internal/ai"
	"recruitflow/internal/config"
	"recruitflow/internal/document"
	"recruitflow/internal/errors"
	"recruitflow/internal/extraction"
	"recruitflow/internal/generation"
	"recruitflow/internal/scoring"
	"recruitflow/internal/shortlist"
)

// Build wires a sequencer from configuration. model may be nil, in which case
// extraction falls back to pattern matching, cultural fit takes its default,
// no questions are generated and emails use the fixed templates.
func Build(cfg *config.Config, model ai.Completer, recorder Recorder, logger *errors.Logger, observers ...ProgressFunc) (*Sequencer, error) {
	opts, err := NewOptions(cfg, model, recorder, logger)
	if err != nil {
		return nil, err
	}
	return New(opts, observers...)
}

// NewOptions builds the stage capabilities from configuration. Commands
// that run a single stage use them directly.
func NewOptions(cfg *config.Config, model ai.Completer, recorder Recorder, logger *errors.Logger) (Options, error) {
	engine, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		return Options{}, err
	}

	converter := document.NewConverter(cfg.Pipeline.AllowedFormats, cfg.Pipeline.MaxFileSize)
	opts := Options{
		Extractor:   extraction.NewExtractor(converter, model, logger),
		Ranker:      shortlist.NewRanker(cfg.Pipeline.MinimumScore, cfg.Pipeline.MaxCandidates),
		Workers:     cfg.Pipeline.Workers,
		ItemTimeout: cfg.Pipeline.ItemTimeout,
		Recorder:    recorder,
		Logger:      logger,
	}

	var assessor *scoring.Assessor
	if model != nil {
		assessor = scoring.NewAssessor(model)
	}
	opts.Scorer = scoring.NewScorer(engine, assessor, cfg.Scoring.AssessFallback, logger)

	if cfg.Pipeline.GenerateQuestions && model != nil {
		opts.Questions = generation.NewQuestionGenerator(model, cfg.Pipeline.Questions, logger)
	}
	if cfg.Pipeline.GenerateEmails {
		opts.Emails = generation.NewEmailDrafter(model, logger)
	}
	return opts, nil
}
