package notification

import "go.uber.org/fx"

// Module wires the dispatcher side: anything that completes instances gets
// the queue-backed Notifier.
var Module = fx.Module("notification.dispatch",
	fx.Provide(
		NewNoopQuerier,
		NewDispatcher,
		asNotifier,
	),
)

// WorkerModule additionally consumes queued send tasks.
var WorkerModule = fx.Module("notification.worker",
	fx.Provide(
		NewNoopQuerier,
		NewDispatcher,
		asNotifier,
		NewStaticResolver,
		NewLogSender,
		NewHandler,
	),
	fx.Invoke(RegisterHandlers),
)
