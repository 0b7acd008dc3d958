package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"vodscribe.tv/vodscribe/internal/db"
)

const (
	discoveryInterval   = "@every 15m"
	livenessInterval    = "@every 5m"
	maintenanceInterval = "@every 1h"

	// A discovery cycle that is still pending when the next one fires is
	// skipped rather than stacked.
	discoveryUniqueTTL = 14 * time.Minute
)

// newEnvelopeTask wraps a task input in the chain envelope the worker
// handlers expect.
func newEnvelopeTask(name string, input any, chain ...string) (*asynq.Task, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for %q: %w", name, err)
	}
	env, err := json.Marshal(Envelope{Input: data, Chain: chain})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope for %q: %w", name, err)
	}
	return asynq.NewTask(name, env), nil
}

// BuildScheduler registers the recurring triggers: one discovery entry per
// channel of the scheduled platform, a single liveness-refresh entry covering
// the whole platform, and a maintenance entry pruning stale ad-hoc jobs.
// Entries are process-local and rebuilt from the channel table on every
// restart. A registration failure for one channel does not affect the others.
func BuildScheduler(opt asynq.RedisClientOpt, routing Routing, platform string, channels []*db.Channel) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Logger: slogLogger{},
		EnqueueErrorHandler: func(task *asynq.Task, opts []asynq.Option, err error) {
			if errors.Is(err, asynq.ErrDuplicateTask) {
				slog.Info("periodic task still pending, skipping this cycle", "task", task.Type())
				return
			}
			slog.Error("failed to enqueue periodic task", "task", task.Type(), "error", err)
		},
	})

	registered := 0
	for _, channel := range channels {
		task, err := newEnvelopeTask(TypeFetchVideos, ChannelPayload{ChannelID: channel.ID})
		if err != nil {
			slog.Error("failed to build discovery trigger", "channel_id", channel.ID, "error", err)
			continue
		}
		entryID, err := scheduler.Register(discoveryInterval, task,
			asynq.Queue(routing.QueueFor(TypeFetchVideos)),
			asynq.MaxRetry(defaultMaxRetry),
			asynq.Unique(discoveryUniqueTTL))
		if err != nil {
			slog.Error("failed to register discovery trigger", "channel_id", channel.ID, "channel", channel.Name, "error", err)
			continue
		}
		slog.Info("registered discovery trigger", "channel_id", channel.ID, "channel", channel.Name, "entry", entryID)
		registered++
	}

	livenessTask, err := newEnvelopeTask(TypeUpdateLastActive, PlatformPayload{Platform: platform})
	if err != nil {
		return nil, err
	}
	entryID, err := scheduler.Register(livenessInterval, livenessTask,
		asynq.Queue(routing.QueueFor(TypeUpdateLastActive)),
		asynq.MaxRetry(defaultMaxRetry))
	if err != nil {
		return nil, fmt.Errorf("register liveness trigger: %w", err)
	}
	slog.Info("registered liveness trigger", "platform", platform, "entry", entryID)

	pruneTask, err := newEnvelopeTask(TypePruneJobs, struct{}{})
	if err != nil {
		return nil, err
	}
	entryID, err = scheduler.Register(maintenanceInterval, pruneTask,
		asynq.Queue(routing.QueueFor(TypePruneJobs)))
	if err != nil {
		return nil, fmt.Errorf("register maintenance trigger: %w", err)
	}
	slog.Info("registered maintenance trigger", "entry", entryID)

	slog.Info("scheduler built", "discovery_entries", registered, "channels", len(channels))
	return scheduler, nil
}
