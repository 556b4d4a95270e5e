package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler executes a run immediately and then on every tick until stopped.
// At most one run waits behind the executing one; further ticks are dropped.
type Scheduler struct {
	name      string
	run       func(ctx context.Context) error
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(name string, interval time.Duration, run func(ctx context.Context) error) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		name:      name,
		run:       run,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 1),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueRun()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueRun()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) bool {
	select {
	case s.taskQueue <- task:
		return true
	default:
		return false
	}
}

func (s *Scheduler) enqueueRun() {
	if !s.EnqueueTask(NewRunTask(s.name, s.run)) {
		slog.Warn("Previous run still in progress, skipping tick", "name", s.name)
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	if err := task.Execute(s.ctx); err != nil {
		slog.Error("Scheduled run failed", "type", string(task.GetType()), "name", task.GetTarget(), "id", task.GetID(), "duration", task.GetDuration(), "error", err)
		return
	}

	slog.Debug("Scheduled run completed", "name", task.GetTarget(), "id", task.GetID(), "duration", task.GetDuration())
}
