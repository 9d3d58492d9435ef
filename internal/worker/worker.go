// Package worker consumes audit task messages from RabbitMQ and runs each one
// through the audit service.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/job-audit/internal/audit"
	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer opens a delivery stream
type Consumer interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// TaskHandler executes one task message
type TaskHandler interface {
	Handle(ctx context.Context, msg domain.TaskMessage) (*audit.HandleResult, error)
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Consumer    Consumer
	Handler     TaskHandler
	Concurrency int
	JobTimeout  time.Duration
}

// Worker represents the audit task worker
type Worker struct {
	logger      *slog.Logger
	consumer    Consumer
	handler     TaskHandler
	concurrency int
	jobTimeout  time.Duration
	workerID    string
	jobsChan    chan *taskDelivery
	wg          sync.WaitGroup
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		logger:      cfg.Logger,
		consumer:    cfg.Consumer,
		handler:     cfg.Handler,
		concurrency: concurrency,
		jobTimeout:  cfg.JobTimeout,
		workerID:    "audit-worker-" + uuid.NewString()[:8],
		jobsChan:    make(chan *taskDelivery),
		stopChan:    make(chan struct{}),
	}
}

// Start consumes until ctx is canceled or the delivery channel closes
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	err = w.startMessageDispatcher(ctx, deliveries)
	close(w.jobsChan)
	return err
}

// Stop gracefully stops the worker and waits for in-flight tasks
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
