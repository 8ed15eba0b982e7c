package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"reporting-scheduler/pkg/config"
	"reporting-scheduler/pkg/db"
	"reporting-scheduler/pkg/gen"
	"reporting-scheduler/pkg/logger"
	"reporting-scheduler/pkg/metrics"
	"reporting-scheduler/pkg/redis"
	"reporting-scheduler/pkg/security"
	"reporting-scheduler/pkg/task"
	"reporting-scheduler/services/definition"
	"reporting-scheduler/services/instance"
	"reporting-scheduler/services/notification"
)

// The worker binary consumes scheduler-fired tasks, runs the poll loops that
// claim pending instances, and delivers queued notifications.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		metrics.Module,
		security.Module,
		task.Client,
		task.Server,

		definition.WorkerModule,
		instance.WorkerModule,
		notification.WorkerModule,

		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
