package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/job-audit/internal/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	log := w.logger.With(slog.String("worker_name", workerName))

	for {
		select {
		case <-w.stopChan:
			log.Info("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			log.Info("Worker goroutine stopping - context canceled")
			return

		case td, ok := <-w.jobsChan:
			if !ok {
				log.Info("Worker goroutine stopping - jobsChan closed")
				return
			}
			w.settle(log, td, w.processTask(ctx, td))
		}
	}
}

// settle ACKs or NACKs a processed delivery
func (w *Worker) settle(log *slog.Logger, td *taskDelivery, err error) {
	log = log.With(
		slog.Int64("task_id", td.msg.TaskID),
		slog.Uint64("delivery_tag", td.delivery.DeliveryTag),
	)

	if err == nil {
		if ackErr := td.delivery.Ack(false); ackErr != nil {
			log.Error("Failed to ACK message", slog.String("error", ackErr.Error()))
		}
		return
	}

	requeue := shouldRequeueTask(err)

	if nackErr := td.delivery.Nack(false, requeue); nackErr != nil {
		log.Error("Failed to NACK message", slog.String("error", nackErr.Error()))
		return
	}

	log.Info("Message NACKed",
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)
}

// shouldRequeueTask determines if a task should be requeued based on the error type
func shouldRequeueTask(err error) bool {
	// Don't requeue client-side problems
	if domain.IsValidationError(err) {
		return false
	}

	// Requeue for transient/retryable errors
	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	// Default: don't requeue for unknown errors
	return false
}
