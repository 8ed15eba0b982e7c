package instance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"reporting-scheduler/pkg/task"
)

// Renderer produces the report artifact for a claimed instance and returns a
// human readable status text, typically a download location or row count.
type Renderer interface {
	Render(ctx context.Context, inst *Instance) (string, error)
}

type noopRenderer struct{}

// NewNoopRenderer marks instances done without producing an artifact. Real
// rendering lives outside this service; deployments plug their own Renderer.
func NewNoopRenderer() Renderer { return noopRenderer{} }

func (noopRenderer) Render(context.Context, *Instance) (string, error) { return "", nil }

// Runner handles scheduler-fired tasks: each firing materializes one pending
// instance for the worker pool to claim.
type Runner struct {
	svc    *Service
	logger *zap.Logger
}

func NewRunner(svc *Service, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.L()
	}
	return &Runner{svc: svc, logger: logger}
}

func (r *Runner) HandleReportRun(ctx context.Context, t *asynq.Task) error {
	var payload task.ReportRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		r.logger.Error("malformed report run payload", zap.Error(err))
		return nil // not retryable
	}
	_, err := r.svc.CreateFromSchedule(ctx, payload.DefinitionID, time.Now().UTC())
	return err
}

// RegisterHandlers attaches the runner to the task mux.
func RegisterHandlers(mux *asynq.ServeMux, r *Runner) {
	mux.HandleFunc(task.TypeReportRun, r.HandleReportRun)
}
