package cli

import (
	"context"

	"recruitflow/internal/common"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/types"

	"github.com/spf13/cobra"
)

// jobFlags selects the job requirement of a command.
type jobFlags struct {
	path string
	demo bool
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "job", "j", "", "Job requirement file (YAML or JSON)")
	cmd.Flags().BoolVar(&f.demo, "demo-job", false, "Use the built-in demo job requirement")
	cmd.MarkFlagsMutuallyExclusive("job", "demo-job")
}

func (f *jobFlags) load() (types.JobRequirement, error) {
	return common.LoadJob(f.path, f.demo)
}

var (
	runConfig       common.CommandConfig
	runJob          jobFlags
	runSkipArtifact bool
)

var runCmd = &cobra.Command{
	Use:   "run [sources...]",
	Short: "Run the whole pipeline over a batch of CVs",
	Long: `Parse every CV found in the sources, score the candidates against the job
requirement, shortlist the best of them and prepare interview questions and
email drafts for the shortlist.

A source is a file, a directory (its supported files are read, not recursing)
or an S3 prefix such as s3://bucket/inbox/. The result files of the run are
written to the configured output directory, and to the bucket when S3 is
enabled.`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := common.ValidateSources(args); err != nil {
			return err
		}
		return resolveFormat(cmd, &runConfig)
	},
	RunE: runPipeline,
}

func init() {
	runJob.register(runCmd)
	addOutputFlags(runCmd, &runConfig)
	runCmd.Flags().BoolVar(&runSkipArtifact, "no-artifacts", false, "Do not write the result files of the run")
}

type runInput struct {
	job  types.JobRequirement
	docs []types.Document
}

func runPipeline(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, common.RuntimeOptions{RunStore: true})
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, rt)
	rt.ServeMetrics()

	seq, err := rt.Sequencer(rt.LogProgress)
	if err != nil {
		return err
	}

	loadInput := func(ctx context.Context) (runInput, error) {
		job, err := runJob.load()
		if err != nil {
			return runInput{}, err
		}
		docs, err := rt.FileProcessor().LoadDocuments(ctx, args...)
		if err != nil {
			return runInput{}, err
		}
		return runInput{job: job, docs: docs}, nil
	}

	logDetails := func(in runInput, cfg common.CommandConfig) {
		rt.Logger.Info("Starting pipeline run",
			"job", in.job.Title,
			"documents", len(in.docs),
			"model", rt.Model != nil,
			"output_format", cfg.OutputFormat)
	}

	// A failed run still prints its state and writes its artifacts.
	var runErr error
	operation := func(ctx context.Context, in runInput) (pipeline.State, error) {
		run, err := seq.NewRun(in.job, in.docs)
		if err != nil {
			return pipeline.State{}, err
		}
		rt.Track(run)

		state, err := run.Execute(ctx)
		runErr = err
		if !runSkipArtifact {
			if err := rt.WriteArtifacts(context.WithoutCancel(ctx), state, in.job); err != nil {
				return state, err
			}
		}
		return state, nil
	}

	if err := common.RunCommand(cmd.Context(), rt.Logger, cmd.OutOrStdout(), runConfig, loadInput, operation, logDetails); err != nil {
		return err
	}
	return runErr
}
