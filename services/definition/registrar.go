package definition

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"reporting-scheduler/pkg/task"
)

// Registrar keeps the scheduler in step with the stored definitions: enabled
// schedule-triggered definitions get an entry, everything else is removed.
type Registrar interface {
	Sync(d *Details) error
	Remove(id string) error
}

type asynqRegistrar struct {
	scheduler *asynq.Scheduler

	mu      sync.Mutex
	entries map[string]string // definition id -> scheduler entry id
}

func NewAsynqRegistrar(scheduler *asynq.Scheduler) Registrar {
	return &asynqRegistrar{
		scheduler: scheduler,
		entries:   make(map[string]string),
	}
}

func (r *asynqRegistrar) Sync(d *Details) error {
	if err := r.Remove(d.ID); err != nil {
		return err
	}
	if !d.IsEnabled() {
		return nil
	}

	spec, err := d.Schedule().Spec()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(task.ReportRunPayload{DefinitionID: d.ID})
	if err != nil {
		return err
	}

	entryID, err := r.scheduler.Register(spec, asynq.NewTask(task.TypeReportRun, payload))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.entries[d.ID] = entryID
	r.mu.Unlock()

	zap.L().Info("registered definition schedule",
		zap.String("definition_id", d.ID),
		zap.String("spec", spec),
	)
	return nil
}

func (r *asynqRegistrar) Remove(id string) error {
	r.mu.Lock()
	entryID, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return r.scheduler.Unregister(entryID)
}

type noopRegistrar struct{}

// NewNoopRegistrar is used by binaries that do not own the scheduler.
func NewNoopRegistrar() Registrar { return noopRegistrar{} }

func (noopRegistrar) Sync(*Details) error { return nil }
func (noopRegistrar) Remove(string) error { return nil }

type restoreParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Repo      Repository
	Registrar Registrar
}

// RestoreSchedules re-registers every schedulable definition at startup, so a
// restart does not silently drop cron entries.
func RestoreSchedules(p restoreParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			recs, err := p.Repo.ListSchedulable(ctx)
			if err != nil {
				return err
			}
			for i := range recs {
				d, derr := detailsFromRecord(&recs[i])
				if derr != nil {
					zap.L().Warn("skipping corrupt definition during schedule restore",
						zap.String("id", recs[i].ID), zap.Error(derr))
					continue
				}
				if rerr := p.Registrar.Sync(d); rerr != nil {
					zap.L().Error("failed to restore definition schedule",
						zap.String("id", d.ID), zap.Error(rerr))
				}
			}
			zap.L().Info("restored definition schedules", zap.Int("count", len(recs)))
			return nil
		},
	})
}
