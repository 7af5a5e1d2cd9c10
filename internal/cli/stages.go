package cli

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"recruitflow/internal/common"
	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/shortlist"
	"recruitflow/internal/types"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var parseConfig common.CommandConfig

var parseCmd = &cobra.Command{
	Use:   "parse [sources...]",
	Short: "Extract candidate records from CVs",
	Long: `Extract a structured candidate record from every CV found in the sources.
Documents that cannot be parsed are logged and skipped. The JSON output is
the input of "score".`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := common.ValidateSources(args); err != nil {
			return err
		}
		return resolveFormat(cmd, &parseConfig)
	},
	RunE: runParse,
}

var (
	scoreConfig     common.CommandConfig
	scoreJob        jobFlags
	scoreCandidates string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score extracted candidates against a job requirement",
	Long: `Score the candidate records written by "parse" against a job requirement.
Scores are ordered from best to worst. The JSON output is the input of
"shortlist".`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveFormat(cmd, &scoreConfig)
	},
	RunE: runScore,
}

var (
	shortlistConfig common.CommandConfig
	shortlistScores string
	shortlistMin    float64
	shortlistMax    int
)

var shortlistCmd = &cobra.Command{
	Use:   "shortlist",
	Short: "Rank scored candidates and select the shortlist",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveFormat(cmd, &shortlistConfig)
	},
	RunE: runShortlist,
}

func init() {
	addOutputFlags(parseCmd, &parseConfig)

	scoreJob.register(scoreCmd)
	scoreCmd.Flags().StringVarP(&scoreCandidates, "candidates", "c", "", "Candidate records file written by parse (JSON)")
	_ = scoreCmd.MarkFlagRequired("candidates")
	addOutputFlags(scoreCmd, &scoreConfig)

	shortlistCmd.Flags().StringVarP(&shortlistScores, "scores", "s", "", "Scores file written by score (JSON)")
	_ = shortlistCmd.MarkFlagRequired("scores")
	shortlistCmd.Flags().Float64Var(&shortlistMin, "min-score", -1, "Minimum overall score (default from config)")
	shortlistCmd.Flags().IntVar(&shortlistMax, "max-candidates", 0, "Maximum shortlist size (default from config)")
	addOutputFlags(shortlistCmd, &shortlistConfig)
}

func runParse(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, common.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, rt)

	opts, err := rt.Options()
	if err != nil {
		return err
	}

	loadInput := func(ctx context.Context) ([]types.Document, error) {
		return rt.FileProcessor().LoadDocuments(ctx, args...)
	}
	logDetails := func(docs []types.Document, cfg common.CommandConfig) {
		rt.Logger.Info("Starting candidate extraction", "documents", len(docs), "model", rt.Model != nil)
	}
	operation := func(ctx context.Context, docs []types.Document) ([]types.CandidateRecord, error) {
		return extractAll(ctx, opts, docs)
	}
	return common.RunCommand(cmd.Context(), rt.Logger, cmd.OutOrStdout(), parseConfig, loadInput, operation, logDetails)
}

// extractAll extracts every document with the configured number of workers.
// It fails only when no document could be extracted.
func extractAll(ctx context.Context, opts pipeline.Options, docs []types.Document) ([]types.CandidateRecord, error) {
	records := make([]*types.CandidateRecord, len(docs))

	var mu sync.Mutex
	var failures []error

	var g errgroup.Group
	g.SetLimit(max(opts.Workers, 1))
	for i, doc := range docs {
		g.Go(func() error {
			itemCtx, cancel := itemContext(ctx, opts.ItemTimeout)
			defer cancel()

			record, err := pipeline.ExtractDocument(itemCtx, opts.Extractor, doc)
			if err != nil {
				opts.Logger.LogError(err, "Skipping document", "document", doc.Name)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return nil
			}
			records[i] = &record
			return nil
		})
	}
	_ = g.Wait()

	var out []types.CandidateRecord
	for _, record := range records {
		if record != nil {
			out = append(out, *record)
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if len(out) == 0 {
		return nil, errors.NewExtractionError(errors.ErrCodeExtractionFailed,
			fmt.Sprintf("no candidate could be extracted from %d documents", len(docs)), nil).
			WithContext("failures", len(failures))
	}
	return out, nil
}

// itemContext bounds the processing of one item. A zero timeout leaves it unbounded.
func itemContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

type scoreInput struct {
	job        types.JobRequirement
	candidates []types.CandidateRecord
}

func runScore(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, common.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, rt)

	opts, err := rt.Options()
	if err != nil {
		return err
	}

	loadInput := func(context.Context) (scoreInput, error) {
		job, err := scoreJob.load()
		if err != nil {
			return scoreInput{}, err
		}
		var candidates []types.CandidateRecord
		if err := rt.FileProcessor().ReadJSON(scoreCandidates, &candidates); err != nil {
			return scoreInput{}, err
		}
		if len(candidates) == 0 {
			return scoreInput{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("%s holds no candidates", scoreCandidates), nil)
		}
		return scoreInput{job: job, candidates: candidates}, nil
	}
	logDetails := func(in scoreInput, cfg common.CommandConfig) {
		rt.Logger.Info("Starting candidate scoring", "job", in.job.Title, "candidates", len(in.candidates))
	}
	operation := func(ctx context.Context, in scoreInput) ([]types.ScoredCandidate, error) {
		return scoreAll(ctx, opts, in.job, in.candidates)
	}
	return common.RunCommand(cmd.Context(), rt.Logger, cmd.OutOrStdout(), scoreConfig, loadInput, operation, logDetails)
}

// scoreAll scores candidates in order and sorts the result by overall score.
// A malformed job fails the whole command; other failures skip the candidate.
func scoreAll(ctx context.Context, opts pipeline.Options, job types.JobRequirement, candidates []types.CandidateRecord) ([]types.ScoredCandidate, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	var scored []types.ScoredCandidate
	for _, candidate := range candidates {
		itemCtx, cancel := itemContext(ctx, opts.ItemTimeout)
		result, err := opts.Scorer.Score(itemCtx, candidate, job)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			opts.Logger.LogError(err, "Skipping candidate", "candidate", candidate.Name)
			continue
		}
		scored = append(scored, types.ScoredCandidate{Candidate: candidate, Score: result})
	}
	if len(scored) == 0 {
		return nil, errors.NewExternalServiceError(errors.ErrCodeModelFailed,
			fmt.Sprintf("none of %d candidates could be scored", len(candidates)), nil)
	}

	slices.SortStableFunc(scored, func(a, b types.ScoredCandidate) int {
		switch {
		case a.Score.OverallScore > b.Score.OverallScore:
			return -1
		case a.Score.OverallScore < b.Score.OverallScore:
			return 1
		}
		return 0
	})
	return scored, nil
}

func runShortlist(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	minimum := cfg.Pipeline.MinimumScore
	if cmd.Flags().Changed("min-score") {
		minimum = shortlistMin
	}
	maxCount := cfg.Pipeline.MaxCandidates
	if cmd.Flags().Changed("max-candidates") {
		maxCount = shortlistMax
	}
	if minimum < 0 || math.IsNaN(minimum) {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("--min-score cannot be negative, got %.1f", minimum), nil)
	}

	loadInput := func(context.Context) ([]types.ScoredCandidate, error) {
		var scored []types.ScoredCandidate
		err := common.NewFileProcessor(logger, nil, nil).ReadJSON(shortlistScores, &scored)
		return scored, err
	}
	logDetails := func(scored []types.ScoredCandidate, _ common.CommandConfig) {
		logger.Info("Starting shortlisting", "candidates", len(scored), "minimum_score", minimum, "max_candidates", maxCount)
	}
	operation := func(_ context.Context, scored []types.ScoredCandidate) (types.Shortlist, error) {
		return shortlist.Rank(scored, minimum, maxCount), nil
	}
	return common.RunCommand(cmd.Context(), logger, cmd.OutOrStdout(), shortlistConfig, loadInput, operation, logDetails)
}
