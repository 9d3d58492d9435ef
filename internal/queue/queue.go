// Package queue encodes audit task messages onto RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/shared/rabbitmq"
)

const contentTypeJSON = "application/json"

// Publisher sends a message body to the task exchange
type Publisher interface {
	Publish(ctx context.Context, msg rabbitmq.Message) error
}

// TaskQueue enqueues one message per audit task
type TaskQueue struct {
	pub    Publisher
	logger *slog.Logger
}

// NewTaskQueue creates a TaskQueue
func NewTaskQueue(pub Publisher, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{pub: pub, logger: logger}
}

// Enqueue publishes msg as JSON
func (q *TaskQueue) Enqueue(ctx context.Context, msg domain.TaskMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}

	err = q.pub.Publish(ctx, rabbitmq.Message{
		Body:        body,
		ContentType: contentTypeJSON,
		MessageID:   "task-" + strconv.FormatInt(msg.TaskID, 10),
		Type:        string(msg.Type),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue task %d: %w", msg.TaskID, err)
	}

	q.logger.Debug("Task enqueued",
		slog.Int64("task_id", msg.TaskID),
		slog.String("type", string(msg.Type)),
	)
	return nil
}

// Decode parses and validates a task message body
func Decode(body []byte) (domain.TaskMessage, error) {
	var msg domain.TaskMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	if msg.TaskID <= 0 {
		return msg, fmt.Errorf("%w: missing taskId", domain.ErrInvalidPayload)
	}

	if _, err := domain.ParseTaskType(string(msg.Type)); err != nil {
		return msg, err
	}

	return msg, nil
}
