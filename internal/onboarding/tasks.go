package onboarding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// taskTimeout bounds the slowest task, a full voice ingest (download plus
// transcription plus replies).
const taskTimeout = 5 * time.Minute

// TaskRunner executes work the webhook must not wait for: provisioning side
// effects after the transaction commits and voice ingests. Tasks run outside
// the request so a slow userbot or model call never holds a webhook open.
type TaskRunner struct {
	log *zap.Logger
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewTaskRunner(lc fx.Lifecycle, log *zap.Logger) *TaskRunner {
	r := &TaskRunner{log: log.Named("onboarding.tasks")}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			r.mu.Lock()
			r.closed = true
			r.mu.Unlock()

			done := make(chan struct{})
			go func() {
				r.wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return r
}

// Go schedules fn. During shutdown new tasks are dropped with a log line
// rather than racing the stop hook.
func (r *TaskRunner) Go(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn("task dropped on shutdown", zap.String("task", name))
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			r.log.Error("task failed",
				zap.String("task", name),
				zap.Duration("took", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		r.log.Debug("task done", zap.String("task", name), zap.Duration("took", time.Since(start)))
	}()
}
