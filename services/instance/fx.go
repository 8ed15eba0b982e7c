package instance

import (
	"go.uber.org/fx"

	"reporting-scheduler/services/definition"
)

func asDefinitionLoader(s *definition.Service) DefinitionLoader { return s }

// Module wires the instance service for the API binary: request-scoped
// creation, reads, status updates, and the poll endpoint.
var Module = fx.Module("instance.service",
	fx.Provide(
		NewRepository,
		NewPoller,
		asDefinitionLoader,
		NewService,
	),
)

// WorkerModule additionally runs the poll loops and handles scheduler-fired
// tasks.
var WorkerModule = fx.Module("instance.worker",
	fx.Provide(
		NewRepository,
		NewPoller,
		asDefinitionLoader,
		NewService,
		NewNoopRenderer,
		NewRunner,
		NewWorker,
	),
	fx.Invoke(
		RegisterHandlers,
		RunWorker,
	),
)
