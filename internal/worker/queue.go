package worker

import (
	"context"
	"time"
)

// Task is one unit of sequential work
type Task struct {
	// Name identifies the task in results and logs (typically the
	// source document name)
	Name string

	// Fn does the work. It must honor ctx cancellation.
	Fn func(ctx context.Context) error
}

// Result is the structured outcome of one task
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Queue executes tasks strictly one at a time with a bounded per-task
// timeout. There is no interleaving: a task runs to completion (or
// timeout) before the next starts, and one failure never stops the
// queue; only cancellation of the parent context does.
type Queue struct {
	taskTimeout time.Duration
}

// NewQueue creates a sequential queue with the given per-task timeout.
// A non-positive timeout disables the per-task bound.
func NewQueue(taskTimeout time.Duration) *Queue {
	return &Queue{taskTimeout: taskTimeout}
}

// Run executes a single task with the per-task timeout applied
func (q *Queue) Run(ctx context.Context, task Task) Result {
	start := time.Now()

	taskCtx := ctx
	if q.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, q.taskTimeout)
		defer cancel()
	}

	err := task.Fn(taskCtx)
	return Result{
		Name:     task.Name,
		Err:      err,
		Duration: time.Since(start),
	}
}

// RunAll executes the tasks in order. Per-task failures are captured in
// the results; execution stops early only when the parent context is
// done, returning the results gathered so far.
func (q *Queue) RunAll(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, 0, len(tasks))
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, q.Run(ctx, task))
	}
	return results
}
