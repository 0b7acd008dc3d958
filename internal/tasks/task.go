// Package tasks defines the broker-facing task model: named tasks with static
// queue routing, a registry the broker adapter dispatches from, and chain
// envelopes that carry multi-stage work through the queues.
package tasks

import (
	"context"
	"fmt"
	"sort"
)

// Task is one unit of background work. Execute receives the JSON input payload
// and returns the JSON input for the next stage when the task runs as part of
// a chain (nil output passes the input through unchanged).
type Task interface {
	Name() string
	Queue(r Routing) string
	Execute(ctx context.Context, payload []byte) ([]byte, error)
}

// Registry maps task names to implementations.
type Registry struct {
	tasks map[string]Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

func (r *Registry) Register(t Task) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("task has empty name")
	}
	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}
	r.tasks[name] = t
	return nil
}

// MustRegister panics on duplicate registration; task wiring is static, so a
// collision is a programming error caught at startup.
func (r *Registry) MustRegister(ts ...Task) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
