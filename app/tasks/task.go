package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeFetchFeed TaskType = "fetch_feed"
	TaskTypeRun       TaskType = "run"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetTarget() string
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID        string
	Type      TaskType
	Target    string // feed URL or run name
	StartedAt *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetTarget() string {
	return t.Target
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, target string) Task {
	return Task{
		ID:     uuid.NewString(),
		Type:   taskType,
		Target: target,
	}
}

// RunTask executes an arbitrary job, such as one aggregation run.
type RunTask struct {
	Task
	run func(ctx context.Context) error
}

func NewRunTask(name string, run func(ctx context.Context) error) *RunTask {
	return &RunTask{
		Task: NewTask(TaskTypeRun, name),
		run:  run,
	}
}

func (t *RunTask) Execute(ctx context.Context) error {
	return t.run(ctx)
}
