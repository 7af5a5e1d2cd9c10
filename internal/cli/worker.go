package cli

import (
	"context"
	stderrors "errors"
	"time"

	"recruitflow/internal/common"
	"recruitflow/internal/errors"
	"recruitflow/internal/queue"

	"github.com/spf13/cobra"
)

var workerRunTimeout time.Duration

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume run requests from the message broker",
	Long: `Consume pipeline run requests from the configured AMQP queue. Each request
names a job requirement and its documents, inline or as keys in the S3
bucket. Progress updates are published to the updates exchange under the
routing key run.<id>, and the result files of each run are written like
those of "run".`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().DurationVar(&workerRunTimeout, "run-timeout", 30*time.Minute, "Upper bound of one run (0 disables)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, common.RuntimeOptions{RunStore: true})
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, rt)
	rt.ServeMetrics()

	amqpCfg := rt.Config.Queue.AMQP
	if !amqpCfg.Enabled {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "the worker needs queue.amqp.enabled", nil)
	}

	seq, err := rt.Sequencer(rt.LogProgress)
	if err != nil {
		return err
	}

	conn, err := queue.Dial(amqpCfg.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			rt.Logger.LogError(err, "Failed to close broker connection")
		}
	}()

	opts := queue.WorkerOptions{
		Queue:      amqpCfg.RunQueue,
		Workers:    amqpCfg.Workers,
		Sequencer:  seq,
		OnResult:   rt.WriteArtifacts,
		Prepare:    rt.Track,
		RunTimeout: workerRunTimeout,
		Logger:     rt.Logger,
	}
	if rt.Bucket != nil {
		opts.Objects = rt.Bucket
	}
	if amqpCfg.UpdatesExchange != "" {
		publisher, err := queue.NewPublisher(conn.Channel, amqpCfg.UpdatesExchange, rt.Logger)
		if err != nil {
			return err
		}
		opts.Publisher = publisher
	}

	worker, err := queue.NewWorker(conn.Channel, opts)
	if err != nil {
		return err
	}
	if err := worker.Run(cmd.Context()); err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
