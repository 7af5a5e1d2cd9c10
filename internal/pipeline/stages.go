package pipeline

import (
	"context"
	"fmt"

	"recruitflow/internal/errors"
	"recruitflow/internal/shortlist"
	"recruitflow/internal/types"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn for indices [0, n) on at most workers goroutines. Every
// call gets its own deadline. fn reports per-item failures through its own
// result slots, so one item never cancels the others.
func (r *Run) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(r.seq.opts.Workers)
	for i := range n {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			itemCtx, cancel := context.WithTimeout(ctx, r.seq.opts.ItemTimeout)
			defer cancel()
			fn(itemCtx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Run) recordItem(ctx context.Context, stage Stage, success bool) {
	if rec := r.seq.opts.Recorder; rec != nil {
		rec.RecordItem(ctx, string(stage), success)
	}
}

func itemError(stage Stage, item string, err error) StageError {
	return StageError{Stage: stage, Item: item, Code: errors.Code(err), Reason: err.Error()}
}

func cancelled(ctx context.Context) error {
	return errors.NewInternalError(errors.ErrCodeStageFailed, "run cancelled", context.Cause(ctx))
}

// ExtractDocument extracts one document. A document that failed to load is
// reported as the failure of that document alone, without calling extractor.
func ExtractDocument(ctx context.Context, extractor Extractor, doc types.Document) (types.CandidateRecord, error) {
	if doc.Err != nil {
		if errors.Code(doc.Err) != "" {
			return types.CandidateRecord{}, doc.Err
		}
		return types.CandidateRecord{}, errors.NewExtractionError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("document %s could not be loaded", doc.Name), doc.Err)
	}
	return extractor.Extract(ctx, doc)
}

func (r *Run) parse(ctx context.Context, in State) (State, error) {
	r.advance(StageParse, StepParsing, fmt.Sprintf("Parsing %d documents", len(r.docs)))

	records := make([]types.CandidateRecord, len(r.docs))
	failures := make([]error, len(r.docs))
	done := make([]bool, len(r.docs))
	r.forEach(ctx, len(r.docs), func(ctx context.Context, i int) {
		rec, err := ExtractDocument(ctx, r.seq.opts.Extractor, r.docs[i])
		records[i], failures[i], done[i] = rec, err, true
		r.recordItem(ctx, StageParse, err == nil)
	})

	out := in
	seen := make(map[string]string, len(r.docs))
	for i, doc := range r.docs {
		switch {
		case !done[i]:
			continue
		case failures[i] != nil:
			out.Errors = append(out.Errors, itemError(StageParse, doc.Name, failures[i]))
			r.logger.LogError(failures[i], "Document extraction failed", "document", doc.Name)
		default:
			rec := records[i]
			if first, dup := seen[rec.ID]; dup {
				out.Warnings = append(out.Warnings, StageError{Stage: StageParse, Item: doc.Name,
					Reason: fmt.Sprintf("duplicate of %s, skipped", first)})
				continue
			}
			seen[rec.ID] = doc.Name
			if rec.LowConfidence {
				out.Warnings = append(out.Warnings, StageError{Stage: StageParse, Item: doc.Name,
					Reason: fmt.Sprintf("low confidence extraction (%s)", rec.ExtractionMethod)})
			}
			out.Candidates = append(out.Candidates, rec)
		}
	}

	if ctx.Err() != nil {
		return out, cancelled(ctx)
	}
	if len(out.Candidates) == 0 {
		return out, errors.NewExtractionError(errors.ErrCodeExtractionFailed,
			fmt.Sprintf("no candidate could be extracted from %d documents", len(r.docs)), nil)
	}
	r.advance(StageParse, StepParsed, fmt.Sprintf("Parsed %d of %d documents", len(out.Candidates), len(r.docs)))
	return out, nil
}

func (r *Run) score(ctx context.Context, in State) (State, error) {
	r.advance(StageScore, StepScoring, fmt.Sprintf("Scoring %d candidates", len(in.Candidates)))

	results := make([]types.ScoreResult, len(in.Candidates))
	failures := make([]error, len(in.Candidates))
	done := make([]bool, len(in.Candidates))
	r.forEach(ctx, len(in.Candidates), func(ctx context.Context, i int) {
		res, err := r.seq.opts.Scorer.Score(ctx, in.Candidates[i], r.job)
		results[i], failures[i], done[i] = res, err, true
		r.recordItem(ctx, StageScore, err == nil)
		if err == nil {
			if rec := r.seq.opts.Recorder; rec != nil {
				rec.RecordScore(ctx, res.OverallScore, res.Recommendation)
			}
		}
	})

	out := in
	for i, candidate := range in.Candidates {
		switch {
		case !done[i]:
			continue
		case failures[i] != nil:
			out.Errors = append(out.Errors, itemError(StageScore, candidate.Name, failures[i]))
			r.logger.LogError(failures[i], "Candidate scoring failed", "candidate", candidate.Name)
		default:
			if a := results[i].Assessment; a != nil && a.Fallback {
				out.Warnings = append(out.Warnings, StageError{Stage: StageScore, Item: candidate.Name,
					Reason: "qualitative assessment unavailable, default cultural fit used"})
			}
			out.Scores = append(out.Scores, types.ScoredCandidate{Candidate: candidate, Score: results[i]})
		}
	}

	if ctx.Err() != nil {
		return out, cancelled(ctx)
	}
	if len(out.Scores) == 0 {
		return out, errors.NewExternalServiceError(errors.ErrCodeModelFailed,
			fmt.Sprintf("none of %d candidates could be scored", len(in.Candidates)), nil)
	}
	r.advance(StageScore, StepScored, fmt.Sprintf("Scored %d candidates", len(out.Scores)))
	return out, nil
}

func (r *Run) shortlist(ctx context.Context, in State) (State, error) {
	r.advance(StageShortlist, StepShortlisting, "Selecting top candidates")
	if ctx.Err() != nil {
		return in, cancelled(ctx)
	}

	out := in
	out.Shortlist = r.seq.opts.Ranker.Rank(in.Scores)
	r.advance(StageShortlist, StepShortlisted,
		fmt.Sprintf("Shortlisted %d of %d candidates", out.Shortlist.Summary.CountSelected, len(in.Scores)))
	return out, nil
}

func (r *Run) generate(ctx context.Context, in State) (State, error) {
	out := in

	if gen := r.seq.opts.Questions; gen != nil && len(in.Shortlist.Entries) > 0 {
		r.advance(StageGenerate, StepGeneratingQuestion,
			fmt.Sprintf("Generating questions for %d candidates", len(in.Shortlist.Entries)))

		entries := in.Shortlist.Entries
		sets := make([]types.QuestionSet, len(entries))
		failures := make([]error, len(entries))
		done := make([]bool, len(entries))
		r.forEach(ctx, len(entries), func(ctx context.Context, i int) {
			sets[i], failures[i] = gen.Generate(ctx, entries[i].Candidate, entries[i].Score, r.job)
			done[i] = true
			r.recordItem(ctx, StageGenerate, failures[i] == nil)
		})

		for i, e := range entries {
			if !done[i] {
				continue
			}
			if failures[i] != nil {
				out.Warnings = append(out.Warnings, itemError(StageGenerate, e.Candidate.Name, failures[i]))
			}
			out.Questions = append(out.Questions, sets[i])
		}
		if ctx.Err() != nil {
			return out, cancelled(ctx)
		}
		r.advance(StageGenerate, StepQuestionsGenerated, fmt.Sprintf("Generated questions for %d candidates", len(out.Questions)))
	}

	if drafter := r.seq.opts.Emails; drafter != nil && len(in.Scores) > 0 {
		r.advance(StageGenerate, StepDraftingEmails, fmt.Sprintf("Drafting emails for %d candidates", len(in.Scores)))

		type emailTask struct {
			kind  types.EmailType
			entry types.ScoredCandidate
		}
		var tasks []emailTask
		for _, e := range in.Shortlist.Entries {
			tasks = append(tasks, emailTask{kind: types.EmailInterviewInvitation, entry: types.ScoredCandidate{Candidate: e.Candidate, Score: e.Score}})
		}
		_, rejected := shortlist.Partition(in.Scores, in.Shortlist)
		for _, sc := range rejected {
			tasks = append(tasks, emailTask{kind: types.EmailRejection, entry: sc})
		}

		drafts := make([]types.EmailDraft, len(tasks))
		done := make([]bool, len(tasks))
		r.forEach(ctx, len(tasks), func(ctx context.Context, i int) {
			drafts[i] = drafter.Draft(ctx, tasks[i].kind, tasks[i].entry.Candidate, tasks[i].entry.Score, r.job)
			done[i] = true
		})

		fallbacks := 0
		for i, j := range tasks {
			if !done[i] {
				continue
			}
			if drafts[i].Fallback {
				fallbacks++
				out.Warnings = append(out.Warnings, StageError{Stage: StageGenerate, Item: j.entry.Candidate.Name,
					Reason: fmt.Sprintf("%s email drafted from template", j.kind)})
			}
			out.Emails = append(out.Emails, drafts[i])
		}
		if ctx.Err() != nil {
			return out, cancelled(ctx)
		}
		r.advance(StageGenerate, StepEmailsDrafted,
			fmt.Sprintf("Drafted %d emails (%d from templates)", len(out.Emails), fallbacks))
	}

	return out, nil
}
