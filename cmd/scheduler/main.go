package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"reporting-scheduler/internal/httpapi"
	"reporting-scheduler/pkg/config"
	"reporting-scheduler/pkg/db"
	"reporting-scheduler/pkg/gen"
	"reporting-scheduler/pkg/health"
	"reporting-scheduler/pkg/logger"
	"reporting-scheduler/pkg/metrics"
	"reporting-scheduler/pkg/redis"
	"reporting-scheduler/pkg/security"
	"reporting-scheduler/pkg/server"
	"reporting-scheduler/pkg/task"
	"reporting-scheduler/services/definition"
	"reporting-scheduler/services/instance"
	"reporting-scheduler/services/notification"
)

// The scheduler binary serves the REST API, owns the cron scheduler that
// fires report definitions, and exposes the poll endpoint workers claim
// work through.
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
		task.Scheduler,
		health.Module,

		definition.Module,
		instance.Module,
		notification.Module,

		httpapi.Module,
		server.Module,

		fx.Invoke(registerDBPlugins, migrate),
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func registerDBPlugins(gdb *gorm.DB, cfg *config.Config) error {
	if err := db.Otel(gdb); err != nil {
		return err
	}
	return db.Metric(gdb, cfg)
}

func migrate(lc fx.Lifecycle, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return gdb.WithContext(ctx).AutoMigrate(
				&definition.Record{},
				&definition.AccessEntry{},
				&instance.Record{},
				&instance.AccessEntry{},
			)
		},
	})
}
