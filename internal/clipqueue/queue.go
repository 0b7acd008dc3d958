// Package clipqueue implements the clip-creation FIFO: a Redis list shared
// with the chat bot, independent of the task broker's queues. The producer is
// a request handler, the consumer is the bot process; neither treats queue
// trouble as fatal, so every failure here maps to "no task" plus a log line.
package clipqueue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const Key = "tasks:clip_creation"

// ClipCreationTask exists only as a serialized message between enqueue and
// dequeue; it has no persistent storage.
type ClipCreationTask struct {
	TaskType      string  `json:"task_type"`
	BroadcasterID string  `json:"broadcaster_id"`
	TaskID        *string `json:"task_id"`
}

const taskTypeCreateClip = "create_clip"

type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue pushes a clip-creation task for the broadcaster and returns the
// generated task id. Returns "" when the queue is unreachable; the caller
// treats that as a degraded no-op, not an error.
func (q *Queue) Enqueue(ctx context.Context, broadcasterID string) string {
	taskID := uuid.NewString()
	task := ClipCreationTask{
		TaskType:      taskTypeCreateClip,
		BroadcasterID: broadcasterID,
		TaskID:        &taskID,
	}

	data, err := json.Marshal(task)
	if err != nil {
		slog.Error("failed to marshal clip creation task", "broadcaster_id", broadcasterID, "error", err)
		return ""
	}

	if err := q.client.LPush(ctx, Key, data).Err(); err != nil {
		slog.Error("failed to enqueue clip creation task", "broadcaster_id", broadcasterID, "error", err)
		return ""
	}

	slog.Info("enqueued clip creation task", "task_id", taskID, "broadcaster_id", broadcasterID)
	return taskID
}

// Dequeue pops the oldest task, blocking up to timeout. A zero timeout checks
// once and returns immediately. Empty queue, timeout, and connection failure
// all yield nil; failures are logged, never propagated.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) *ClipCreationTask {
	var payload string
	var err error

	if timeout <= 0 {
		payload, err = q.client.RPop(ctx, Key).Result()
	} else {
		var result []string
		result, err = q.client.BRPop(ctx, timeout, Key).Result()
		if err == nil {
			// result is [key, value]
			payload = result[1]
		}
	}

	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("failed to dequeue clip creation task", "error", err)
		}
		return nil
	}

	var task ClipCreationTask
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		slog.Error("failed to decode clip creation task", "error", err)
		return nil
	}

	slog.Info("dequeued clip creation task", "task_id", task.TaskID, "broadcaster_id", task.BroadcasterID)
	return &task
}
