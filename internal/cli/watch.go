package cli

import (
	"context"

	"recruitflow/internal/common"
	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/watch"

	"github.com/spf13/cobra"
)

var (
	watchDir      string
	watchJob      jobFlags
	watchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline on CVs dropped into an inbox directory",
	Long: `Watch an inbox directory and run the pipeline over every batch of new CVs.
Files arriving close together form one batch. The result files of each run
are written like those of "run".`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", "", "Inbox directory (default from config)")
	watchJob.register(watchCmd)
	watchCmd.Flags().BoolVar(&watchExisting, "include-existing", false, "Process the files already in the inbox at startup")
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, common.RuntimeOptions{RunStore: true})
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, rt)
	rt.ServeMetrics()

	dir := watchDir
	if dir == "" {
		dir = rt.Config.Watch.Dir
	}
	if dir == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "an inbox directory is needed: pass --dir or set watch.dir", nil)
	}
	if watchJob.path == "" && !watchJob.demo {
		watchJob.path = rt.Config.Watch.JobFile
	}
	job, err := watchJob.load()
	if err != nil {
		return err
	}

	seq, err := rt.Sequencer(rt.LogProgress)
	if err != nil {
		return err
	}

	onResult := func(ctx context.Context, state pipeline.State, runErr error) {
		if state.RunID == "" {
			return
		}
		if err := rt.WriteArtifacts(context.WithoutCancel(ctx), state, job); err != nil {
			rt.Logger.LogError(err, "Failed to write run artifacts", "run_id", state.RunID)
		}
	}
	runner := watch.NewRunner(cmd.Context(), seq, job, onResult, rt.Logger)

	watcher, err := watch.NewInboxWatcher(dir, rt.Config.Watch.Debounce, rt.Converter().Supports, runner.HandleBatch, rt.Logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(watchExisting); err != nil {
		return err
	}
	rt.Logger.Info("Watching inbox", "dir", dir, "job", job.Title)

	<-cmd.Context().Done()
	return watcher.Stop()
}
