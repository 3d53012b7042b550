package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueue_RunAllSequential(t *testing.T) {
	queue := NewQueue(0)

	var order []string
	tasks := []Task{
		{Name: "a", Fn: func(ctx context.Context) error { order = append(order, "a"); return nil }},
		{Name: "b", Fn: func(ctx context.Context) error { order = append(order, "b"); return nil }},
		{Name: "c", Fn: func(ctx context.Context) error { order = append(order, "c"); return nil }},
	}

	results := queue.RunAll(context.Background(), tasks)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"a", "b", "c"} {
		if order[i] != want {
			t.Errorf("Expected task %s at position %d, got %s", want, i, order[i])
		}
		if results[i].Name != want {
			t.Errorf("Expected result name %s, got %s", want, results[i].Name)
		}
	}
}

func TestQueue_FailureDoesNotStopQueue(t *testing.T) {
	queue := NewQueue(0)
	boom := errors.New("extraction failed")

	var ran int
	tasks := []Task{
		{Name: "a", Fn: func(ctx context.Context) error { ran++; return boom }},
		{Name: "b", Fn: func(ctx context.Context) error { ran++; return nil }},
	}

	results := queue.RunAll(context.Background(), tasks)
	if ran != 2 {
		t.Fatalf("Expected both tasks to run, got %d", ran)
	}
	if !errors.Is(results[0].Err, boom) {
		t.Errorf("Expected first result to carry the failure, got %v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("Expected second task to succeed, got %v", results[1].Err)
	}
}

func TestQueue_PerTaskTimeout(t *testing.T) {
	queue := NewQueue(20 * time.Millisecond)

	result := queue.Run(context.Background(), Task{
		Name: "slow",
		Fn: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		},
	})

	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", result.Err)
	}
	if result.Duration > time.Second {
		t.Errorf("Expected the task cut off near the timeout, took %v", result.Duration)
	}
}

func TestQueue_ParentCancellationStopsQueue(t *testing.T) {
	queue := NewQueue(0)
	ctx, cancel := context.WithCancel(context.Background())

	var ran int
	tasks := []Task{
		{Name: "a", Fn: func(ctx context.Context) error { ran++; cancel(); return nil }},
		{Name: "b", Fn: func(ctx context.Context) error { ran++; return nil }},
	}

	results := queue.RunAll(ctx, tasks)
	if ran != 1 {
		t.Errorf("Expected only the first task to run, got %d", ran)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}
