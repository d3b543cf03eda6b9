// Package scheduler runs the periodic batch jobs (chase scan, conflict
// digest) on fixed cron schedules, independent of inbound traffic.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Task is one scheduled batch job.
type Task struct {
	Name string
	// Spec is a cron expression, including the @every shorthand.
	Spec string
	// Budget bounds one run's wall-clock time. Zero means no bound beyond
	// the runner's shutdown.
	Budget time.Duration
	Run    func(ctx context.Context) error
}

// Runner drives registered tasks on their cron schedules. A task that is
// still running when its next tick fires is skipped for that tick, so a
// slow batch never stacks up behind itself.
type Runner struct {
	cron   *cron.Cron
	tasks  []Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Runner.
func New() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron:   cron.New(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a task. Must be called before Start.
func (r *Runner) Register(t Task) error {
	if t.Name == "" || t.Spec == "" || t.Run == nil {
		return eris.New("scheduler: task needs a name, spec, and run func")
	}

	var running sync.Mutex
	job := func() {
		if !running.TryLock() {
			zap.L().Warn("scheduler: previous run still active, skipping tick",
				zap.String("task", t.Name),
			)
			return
		}
		defer running.Unlock()

		r.wg.Add(1)
		defer r.wg.Done()

		ctx := r.ctx
		if t.Budget > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.Budget)
			defer cancel()
		}

		start := time.Now()
		if err := t.Run(ctx); err != nil {
			zap.L().Error("scheduler: task failed",
				zap.String("task", t.Name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("scheduler: task finished",
			zap.String("task", t.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	if err := r.cron.AddFunc(t.Spec, job); err != nil {
		return eris.Wrapf(err, "scheduler: bad spec for %s", t.Name)
	}
	r.tasks = append(r.tasks, t)
	return nil
}

// Start begins scheduling. Non-blocking.
func (r *Runner) Start() {
	names := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		names[i] = t.Name + " (" + t.Spec + ")"
	}
	zap.L().Info("scheduler: starting", zap.Strings("tasks", names))
	r.cron.Start()
}

// Stop halts scheduling, cancels in-flight runs, and waits for them to
// return.
func (r *Runner) Stop() {
	r.cron.Stop()
	r.cancel()
	r.wg.Wait()
	zap.L().Info("scheduler: stopped")
}
