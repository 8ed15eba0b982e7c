package instance

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reporting-scheduler/pkg/config"
	"reporting-scheduler/pkg/security"
)

// Worker runs the poll loops. Each loop claims one pending instance at a
// time, renders it, and records the outcome; when there is nothing to claim
// it sleeps for whatever backoff the poll handed back.
type Worker struct {
	svc      *Service
	renderer Renderer
	cfg      *config.Config
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

type WorkerParams struct {
	fx.In
	Service  *Service
	Renderer Renderer
	Config   *config.Config
	Logger   *zap.Logger `optional:"true"`
}

func NewWorker(p WorkerParams) *Worker {
	if p.Logger == nil {
		p.Logger = zap.L()
	}
	return &Worker{
		svc:      p.Service,
		renderer: p.Renderer,
		cfg:      p.Config,
		logger:   p.Logger,
	}
}

// Start launches the configured number of poll loops.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Reports.PollConcurrency; i++ {
		id := i
		g.Go(func() error {
			w.loop(ctx, id)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(w.done)
	}()
}

// Stop cancels the loops and waits for in-flight executions to finish.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context, id int) {
	user := &security.User{Name: w.cfg.Reports.PollAccessUser}
	logger := w.logger.With(zap.Int("worker", id))
	logger.Info("poll loop started")

	for {
		if ctx.Err() != nil {
			logger.Info("poll loop stopped")
			return
		}

		res, err := w.svc.Poll(ctx, user)
		if err != nil {
			logger.Error("poll failed", zap.Error(err))
			if !sleep(ctx, time.Duration(w.cfg.Reports.MinPollingSeconds)*time.Second) {
				return
			}
			continue
		}

		if res.Instance == nil {
			if !sleep(ctx, res.RetryAfter) {
				return
			}
			continue
		}

		w.execute(ctx, logger, res.Instance)
	}
}

func (w *Worker) execute(ctx context.Context, logger *zap.Logger, inst *Instance) {
	statusText, err := w.renderer.Render(ctx, inst)
	status := Success
	if err != nil {
		status = Failed
		statusText = err.Error()
		logger.Error("report render failed", zap.String("id", inst.ID), zap.Error(err))
	}
	if ferr := w.svc.Finish(ctx, inst, status, statusText); ferr != nil {
		logger.Error("failed to record execution outcome", zap.String("id", inst.ID), zap.Error(ferr))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RunWorker ties the worker to the application lifecycle.
func RunWorker(lc fx.Lifecycle, w *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return w.Stop(ctx)
		},
	})
}
