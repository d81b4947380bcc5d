package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// restartBackoff is how long a crashed job loop waits before coming back.
const restartBackoff = 10 * time.Second

// Supervisor runs the background workers. Each job is a goroutine on a fixed
// interval; a panic inside one tick is logged and the loop restarts, so one
// bad upstream payload never takes the scheduler down.
type Supervisor struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewSupervisor(logger *slog.Logger) *Supervisor {
	return &Supervisor{logger: logger.With("component", "scheduler")}
}

// Every schedules fn on the interval until ctx is done. The first run
// happens after one interval, not immediately; callers that need warm caches
// run the fn once themselves before starting the supervisor.
func (s *Supervisor) Every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			if done := s.runLoop(ctx, name, interval, fn); done {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(restartBackoff):
				s.logger.Info("job loop restarting", "job", name)
			}
		}
	}()
}

// runLoop ticks until ctx is done or fn panics. Returns true when the
// supervisor should stop scheduling this job.
func (s *Supervisor) runLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) (done bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("job panicked",
				"job", name,
				"error", rec,
				"stack", string(debug.Stack()),
			)
			done = false
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Wait blocks until every job loop has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
