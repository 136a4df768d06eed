package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
)

// Worker interface that background workers should implement
type Worker interface {
	// Name returns worker name for logging
	Name() string
	// Run executes one iteration of work
	Run(ctx context.Context) error
}

// Runner schedules a Worker
type Runner interface {
	Start(ctx context.Context)
	Stop(timeout time.Duration)
}

// runOnce executes one iteration and logs failures; the worker keeps its schedule either way
func runOnce(ctx context.Context, w Worker) {
	start := time.Now()
	if err := w.Run(ctx); err != nil {
		logger.Error("worker execution failed",
			zap.String("worker", w.Name()),
			zap.Error(err),
		)
		return
	}
	logger.Debug("worker iteration done",
		zap.String("worker", w.Name()),
		zap.Duration("duration", time.Since(start)),
	)
}

// waitStopped waits for wg or gives up after timeout
func waitStopped(name string, wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("worker stopped", zap.String("worker", name))
	case <-time.After(timeout):
		logger.Warn("worker stop timeout", zap.String("worker", name))
	}
}

// PeriodicWorker runs a Worker immediately and then on a fixed interval
type PeriodicWorker struct {
	worker   Worker
	interval time.Duration
	wg       sync.WaitGroup
}

// NewPeriodicWorker creates new periodic worker
func NewPeriodicWorker(worker Worker, interval time.Duration) *PeriodicWorker {
	return &PeriodicWorker{
		worker:   worker,
		interval: interval,
	}
}

// Start starts the worker until ctx is cancelled
func (pw *PeriodicWorker) Start(ctx context.Context) {
	pw.wg.Add(1)
	go pw.run(ctx)
}

// Stop waits for graceful shutdown
func (pw *PeriodicWorker) Stop(timeout time.Duration) {
	waitStopped(pw.worker.Name(), &pw.wg, timeout)
}

func (pw *PeriodicWorker) run(ctx context.Context) {
	defer pw.wg.Done()

	logger.Info("worker started",
		zap.String("worker", pw.worker.Name()),
		zap.Duration("interval", pw.interval),
	)

	runOnce(ctx, pw.worker)

	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, pw.worker)
		}
	}
}

// CronWorker runs a Worker on a cron schedule (standard 5-field expression)
type CronWorker struct {
	worker Worker
	expr   string
	cron   *cron.Cron
	wg     sync.WaitGroup
}

// NewCronWorker validates the expression and creates a cron-scheduled worker
func NewCronWorker(worker Worker, expr string) (*CronWorker, error) {
	cw := &CronWorker{
		worker: worker,
		expr:   expr,
		// overlapping runs of the same worker are skipped
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid schedule %q for %s: %w", expr, worker.Name(), err)
	}
	return cw, nil
}

// Start registers the job and starts the scheduler until ctx is cancelled
func (cw *CronWorker) Start(ctx context.Context) {
	if _, err := cw.cron.AddFunc(cw.expr, func() {
		if ctx.Err() != nil {
			return
		}
		runOnce(ctx, cw.worker)
	}); err != nil {
		logger.Error("failed to schedule worker", zap.String("worker", cw.worker.Name()), zap.Error(err))
		return
	}
	cw.cron.Start()

	logger.Info("worker scheduled",
		zap.String("worker", cw.worker.Name()),
		zap.String("schedule", cw.expr),
	)

	cw.wg.Add(1)
	go func() {
		defer cw.wg.Done()
		<-ctx.Done()
		// wait for a running job to finish
		<-cw.cron.Stop().Done()
	}()
}

// Stop waits for the scheduler and any running job to finish
func (cw *CronWorker) Stop(timeout time.Duration) {
	waitStopped(cw.worker.Name(), &cw.wg, timeout)
}

// Group manages multiple runners with graceful shutdown
type Group struct {
	runners []Runner
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// NewGroup creates new worker group
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add adds a periodic worker
func (g *Group) Add(w Worker, interval time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runners = append(g.runners, NewPeriodicWorker(w, interval))
}

// AddCron adds a cron-scheduled worker
func (g *Group) AddCron(w Worker, expr string) error {
	cw, err := NewCronWorker(w, expr)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runners = append(g.runners, cw)
	return nil
}

// Len returns the number of registered runners
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.runners)
}

// Start starts all runners
func (g *Group) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range g.runners {
		r.Start(g.ctx)
	}

	logger.Info("worker group started", zap.Int("workers", len(g.runners)))
}

// Stop cancels the group context and waits for every runner
func (g *Group) Stop(timeout time.Duration) {
	g.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range g.runners {
		r.Stop(timeout)
	}

	logger.Info("worker group stopped", zap.Int("workers", len(g.runners)))
}
