package definition

import "go.uber.org/fx"

// Module wires the definition service for the API binary, which owns the
// scheduler and keeps cron entries in sync with definition mutations.
var Module = fx.Module("definition.service",
	fx.Provide(
		NewRepository,
		NewAsynqRegistrar,
		NewService,
	),
	fx.Invoke(RestoreSchedules),
)

// WorkerModule wires the definition service for the worker binary, which only
// reads definitions and never touches scheduler entries.
var WorkerModule = fx.Module("definition.worker",
	fx.Provide(
		NewRepository,
		NewNoopRegistrar,
		NewService,
	),
)
