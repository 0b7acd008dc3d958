package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"vodscribe.tv/vodscribe/pkg/utils/format"
)

// Pipeline stages get a bounded number of deliveries; everything downstream of
// that is re-driven by re-invoking the chain, which the stage idempotency
// guards make safe.
const defaultMaxRetry = 3

// Envelope is the wire form of one task invocation. Chain holds the names of
// the stages still to run after this one; the broker adapter enqueues the head
// of Chain with this task's output once Execute returns nil. A failed stage
// leaves the envelope (with its remaining chain) in the broker's failure
// tracking, so partial completion stays inspectable and retryable.
type Envelope struct {
	Input json.RawMessage `json:"input"`
	Chain []string        `json:"chain,omitempty"`
}

// Broker enqueues tasks onto their routed queues and dispatches deliveries to
// registry implementations. A nil registry makes a producer-only broker:
// Enqueue routes by name alone, and Mux must not be called.
type Broker struct {
	client   *asynq.Client
	routing  Routing
	registry *Registry
}

func NewBroker(opt asynq.RedisClientOpt, routing Routing, registry *Registry) *Broker {
	return &Broker{
		client:   asynq.NewClient(opt),
		routing:  routing,
		registry: registry,
	}
}

func (b *Broker) Close() error {
	return b.client.Close()
}

func (b *Broker) Routing() Routing {
	return b.routing
}

// Enqueue submits a single task invocation.
func (b *Broker) Enqueue(ctx context.Context, name string, input any) error {
	return b.EnqueueChain(ctx, []string{name}, input)
}

// EnqueueChain submits names[0] carrying the rest of the chain in its
// envelope. Stage n+1 is only ever enqueued after stage n returns, which is
// what guarantees stage ordering per video across the worker fleet.
func (b *Broker) EnqueueChain(ctx context.Context, names []string, input any) error {
	if len(names) == 0 {
		return errors.New("enqueue: empty chain")
	}
	if b.registry != nil {
		for _, name := range names {
			if _, ok := b.registry.Get(name); !ok {
				return fmt.Errorf("enqueue: unknown task %q", name)
			}
		}
	}

	task, err := newEnvelopeTask(names[0], input, names[1:]...)
	if err != nil {
		return err
	}

	// tasks may override their routed queue; producers without a registry
	// fall back to the static table
	queue := b.routing.QueueFor(names[0])
	if b.registry != nil {
		if t, ok := b.registry.Get(names[0]); ok {
			queue = t.Queue(b.routing)
		}
	}

	info, err := b.client.EnqueueContext(ctx, task,
		asynq.Queue(queue), asynq.MaxRetry(defaultMaxRetry))
	if err != nil {
		return fmt.Errorf("enqueue %q on %q: %w", names[0], queue, err)
	}
	slog.Info("task enqueued", "task", names[0], "queue", queue, "id", info.ID, "chain", names[1:])
	return nil
}

// Mux builds the dispatch table the worker serves. Each handler runs the
// registered task and, on success, advances the envelope's chain.
func (b *Broker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for _, name := range b.registry.Names() {
		task, _ := b.registry.Get(name)
		mux.HandleFunc(name, b.handler(task))
	}
	return mux
}

func (b *Broker) handler(task Task) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var env Envelope
		if err := json.Unmarshal(t.Payload(), &env); err != nil {
			return fmt.Errorf("unmarshal envelope for %q: %w: %w", task.Name(), err, asynq.SkipRetry)
		}

		started := time.Now()
		output, err := task.Execute(ctx, env.Input)
		if err != nil {
			slog.Error("task failed", "task", task.Name(), "error", err,
				"took", format.TaskDuration(time.Since(started)))
			return err
		}
		slog.Info("task completed", "task", task.Name(),
			"took", format.TaskDuration(time.Since(started)))

		if len(env.Chain) == 0 {
			return nil
		}
		if output == nil {
			output = env.Input
		}

		next := env.Chain[0]
		var raw json.RawMessage = output
		if err := b.EnqueueChain(ctx, env.Chain, raw); err != nil {
			return fmt.Errorf("advance chain %q -> %q: %w", task.Name(), next, err)
		}
		return nil
	}
}

// NewServer builds the asynq worker server for the queues this process
// consumes. GPU-bound deployments run with a single queue entry
// ("gpu-queue") and concurrency 1.
func NewServer(opt asynq.RedisClientOpt, concurrency int, queues map[string]int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 4
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
		Logger:      slogLogger{},
		RetryDelayFunc: func(n int, err error, t *asynq.Task) time.Duration {
			return time.Duration(n*n) * 30 * time.Second
		},
	})
}

// ParseQueues parses "name:weight,name" worker queue config into the map
// asynq consumes. Weight defaults to 1.
func ParseQueues(spec string) (map[string]int, error) {
	queues := make(map[string]int)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, weightStr, found := strings.Cut(part, ":")
		weight := 1
		if found {
			var err error
			weight, err = strconv.Atoi(weightStr)
			if err != nil || weight <= 0 {
				return nil, fmt.Errorf("invalid queue weight in %q", part)
			}
		}
		queues[name] = weight
	}
	if len(queues) == 0 {
		return nil, fmt.Errorf("no queues configured in %q", spec)
	}
	return queues, nil
}

// slogLogger adapts asynq's logger interface onto slog.
type slogLogger struct{}

func (slogLogger) Debug(args ...any) { slog.Debug(fmt.Sprint(args...)) }
func (slogLogger) Info(args ...any)  { slog.Info(fmt.Sprint(args...)) }
func (slogLogger) Warn(args ...any)  { slog.Warn(fmt.Sprint(args...)) }
func (slogLogger) Error(args ...any) { slog.Error(fmt.Sprint(args...)) }
func (slogLogger) Fatal(args ...any) { slog.Error(fmt.Sprint(args...)) }
