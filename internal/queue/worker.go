package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/types"

	"github.com/streadway/amqp"
)

// ObjectGetter fetches stored documents by key.
type ObjectGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ResultHandler receives every executed run, failed or not.
type ResultHandler func(ctx context.Context, state pipeline.State, job types.JobRequirement) error

// WorkerOptions wires a Worker. Objects is required only for requests
// referencing stored documents.
type WorkerOptions struct {
	Queue      string
	Workers    int
	Sequencer  *pipeline.Sequencer
	Objects    ObjectGetter
	Publisher  *Publisher
	OnResult   ResultHandler
	Observers  []pipeline.ProgressFunc
	Prepare    func(run *pipeline.Run)
	RunTimeout time.Duration
	Logger     *errors.Logger
}

// Worker consumes run requests from a durable queue.
type Worker struct {
	ch   Channel
	opts WorkerOptions
}

// NewWorker creates a worker on ch.
func NewWorker(ch Channel, opts WorkerOptions) (*Worker, error) {
	if opts.Sequencer == nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "queue worker requires a pipeline", nil)
	}
	if opts.Queue == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "queue worker requires a queue name", nil)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Worker{ch: ch, opts: opts}, nil
}

// Run consumes deliveries with the configured number of goroutines until ctx
// is cancelled or the broker closes the delivery channel. Each delivery is
// acknowledged once its run has finished.
func (w *Worker) Run(ctx context.Context) error {
	if _, err := w.ch.QueueDeclare(w.opts.Queue, true, false, false, false, nil); err != nil {
		return errors.NewIOError(errors.ErrCodeQueueFailed, fmt.Sprintf("failed to declare queue %s", w.opts.Queue), err)
	}
	if err := w.ch.Qos(w.opts.Workers, 0, false); err != nil {
		return errors.NewIOError(errors.ErrCodeQueueFailed, "failed to set prefetch", err)
	}
	deliveries, err := w.ch.Consume(w.opts.Queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeQueueFailed, fmt.Sprintf("failed to consume %s", w.opts.Queue), err)
	}

	w.opts.Logger.Info("Queue worker started", "queue", w.opts.Queue, "workers", w.opts.Workers)

	var wg sync.WaitGroup
	for id := range w.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					w.handle(ctx, id, d)
				}
			}
		}()
	}
	wg.Wait()

	w.opts.Logger.Info("Queue worker stopped", "queue", w.opts.Queue)
	return ctx.Err()
}

// handle processes one delivery. Malformed requests and fatal run inputs are
// rejected without requeue. A document that cannot be fetched fails as an item
// of the run; the delivery is requeued only when the worker stops mid-fetch.
func (w *Worker) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	logger := w.opts.Logger.With("worker", workerID+1)

	req, err := DecodeRequest(d.Body)
	if err != nil {
		logger.LogError(err, "Rejecting run request")
		w.settle(d, d.Reject(false), logger)
		return
	}

	docs, err := w.resolve(ctx, req.Documents)
	if err != nil {
		logger.LogError(err, "Failed to fetch run documents", "run_id", req.RunID)
		if errors.IsType(err, errors.ErrorTypeConfig) {
			w.settle(d, d.Reject(false), logger)
		} else {
			w.settle(d, d.Nack(false, true), logger)
		}
		return
	}

	run, err := w.opts.Sequencer.NewRunWithID(req.RunID, req.Job, docs, w.observers()...)
	if err != nil {
		logger.LogError(err, "Rejecting run request", "run_id", req.RunID)
		if w.opts.Publisher != nil && req.RunID != "" {
			w.opts.Publisher.Observe(pipeline.Event{
				RunID:   req.RunID,
				Step:    pipeline.StepFailed,
				Message: err.Error(),
				Time:    time.Now(),
			})
		}
		w.settle(d, d.Reject(false), logger)
		return
	}

	if w.opts.Prepare != nil {
		w.opts.Prepare(run)
	}

	runCtx := ctx
	if w.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.opts.RunTimeout)
		defer cancel()
	}

	logger.Info("Processing run request", "run_id", run.ID(), "documents", len(docs))
	state, runErr := run.Execute(runCtx)
	if runErr != nil {
		logger.LogError(runErr, "Run failed", "run_id", run.ID())
	}

	if w.opts.OnResult != nil {
		if err := w.opts.OnResult(ctx, state, req.Job); err != nil {
			logger.LogError(err, "Failed to store run result", "run_id", run.ID())
		}
	}
	w.settle(d, d.Ack(false), logger)
}

func (w *Worker) observers() []pipeline.ProgressFunc {
	observers := append([]pipeline.ProgressFunc(nil), w.opts.Observers...)
	if w.opts.Publisher != nil {
		observers = append(observers, w.opts.Publisher.Observe)
	}
	return observers
}

func (w *Worker) resolve(ctx context.Context, refs []DocumentRef) ([]types.Document, error) {
	docs := make([]types.Document, 0, len(refs))
	for _, ref := range refs {
		if len(ref.Data) > 0 {
			docs = append(docs, types.Document{Name: ref.Name, Data: ref.Data})
			continue
		}
		if w.opts.Objects == nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("document %s references object storage but none is configured", ref.S3Key), nil)
		}
		name := ref.Name
		if name == "" {
			name = ref.S3Key
		}
		data, err := w.opts.Objects.Get(ctx, ref.S3Key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			docs = append(docs, types.FailedDocument(name, err))
			continue
		}
		docs = append(docs, types.Document{Name: name, Data: data})
	}
	return docs, nil
}

func (w *Worker) settle(d amqp.Delivery, err error, logger *errors.Logger) {
	if err != nil {
		logger.Warn("Failed to settle delivery", "delivery_tag", d.DeliveryTag, "error", err)
	}
}
