package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-audit/internal/domain"
)

// processTask runs one task under the job timeout. The task context is
// detached from shutdown so an in-flight task can finish. A failed first
// delivery is returned as retryable; a failed redelivery is not.
func (w *Worker) processTask(ctx context.Context, td *taskDelivery) error {
	log := w.logger.With(
		slog.Int64("task_id", td.msg.TaskID),
		slog.String("type", string(td.msg.Type)),
		slog.Bool("redelivered", td.delivery.Redelivered),
	)
	log.Info("Processing task")

	jobCtx := context.WithoutCancel(ctx)
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, w.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := w.handler.Handle(jobCtx, td.msg)
	if err != nil {
		log.Error("Task processing failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)

		if domain.IsValidationError(err) || td.delivery.Redelivered {
			return err
		}
		return domain.NewRetryableError(err)
	}

	log.Info("Task completed successfully",
		slog.String("outcome", string(res.Outcome)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
