package tasks

import (
	"context"
	"testing"
	"time"
)

func TestNewTask(t *testing.T) {
	first := NewTask(TaskTypeFetchFeed, "http://a")
	second := NewTask(TaskTypeFetchFeed, "http://a")

	if first.ID == "" || first.ID == second.ID {
		t.Errorf("Expected unique non-empty IDs, got '%s' and '%s'", first.ID, second.ID)
	}
	if first.GetType() != TaskTypeFetchFeed {
		t.Errorf("Expected type %s, got %s", TaskTypeFetchFeed, first.GetType())
	}
	if first.GetTarget() != "http://a" {
		t.Errorf("Expected target 'http://a', got '%s'", first.GetTarget())
	}
}

func TestTaskDuration(t *testing.T) {
	task := NewTask(TaskTypeRun, "snapshot")

	if task.GetDuration() != 0 {
		t.Errorf("Expected zero duration before start, got %v", task.GetDuration())
	}

	task.Start()
	time.Sleep(5 * time.Millisecond)

	if task.GetDuration() < 5*time.Millisecond {
		t.Errorf("Expected duration of at least 5ms, got %v", task.GetDuration())
	}
}

func TestRunTask(t *testing.T) {
	called := false
	task := NewRunTask("snapshot", func(ctx context.Context) error {
		called = true
		return nil
	})

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !called {
		t.Error("Expected run function to be called")
	}
	if task.GetType() != TaskTypeRun {
		t.Errorf("Expected type %s, got %s", TaskTypeRun, task.GetType())
	}
}
