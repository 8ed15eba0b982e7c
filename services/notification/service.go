package notification

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"reporting-scheduler/pkg/task"
	"reporting-scheduler/services/instance"
)

// SourceQuerier counts the hits a report covered, for the {{hits}}
// placeholder. The default cannot reach the data source and reports zero.
type SourceQuerier interface {
	Hits(ctx context.Context, inst *instance.Instance) (int64, error)
}

type noopQuerier struct{}

func NewNoopQuerier() SourceQuerier { return noopQuerier{} }

func (noopQuerier) Hits(context.Context, *instance.Instance) (int64, error) { return 0, nil }

// Channel is a resolved notification destination.
type Channel struct {
	ID   string
	Name string
}

// Resolver looks a channel id up with the channel backend. An unresolvable
// channel is logged and dropped, never retried.
type Resolver interface {
	ResolveChannel(ctx context.Context, channelID string) (*Channel, error)
}

type staticResolver struct{}

// NewStaticResolver treats every channel id as already resolved. Deployments
// with a channel directory plug their own Resolver.
func NewStaticResolver() Resolver { return staticResolver{} }

func (staticResolver) ResolveChannel(_ context.Context, id string) (*Channel, error) {
	return &Channel{ID: id, Name: id}, nil
}

// Sender pushes a rendered message to one resolved channel. The default only
// logs; deployments plug a real channel integration.
type Sender interface {
	Send(ctx context.Context, ch *Channel, msg Message) error
}

type logSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.L()
	}
	return &logSender{logger: logger}
}

func (s *logSender) Send(_ context.Context, ch *Channel, msg Message) error {
	s.logger.Info("notification delivered",
		zap.String("channel_id", ch.ID),
		zap.String("title", msg.Title),
	)
	return nil
}

// Dispatcher fans a completed instance out to its delivery channels through
// the task queue. Failures are logged and swallowed; a report that cannot
// notify is still a successful report.
type Dispatcher struct {
	enqueuer task.Enqueuer
	querier  SourceQuerier
	logger   *zap.Logger
}

type DispatcherParams struct {
	fx.In
	Enqueuer task.Enqueuer
	Querier  SourceQuerier
	Logger   *zap.Logger `optional:"true"`
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	if p.Logger == nil {
		p.Logger = zap.L()
	}
	return &Dispatcher{enqueuer: p.Enqueuer, querier: p.Querier, logger: p.Logger}
}

func asNotifier(d *Dispatcher) instance.Notifier { return d }

// Dispatch enqueues one send task per configured channel. Instances without
// a delivery block, or without channels, notify nobody.
func (d *Dispatcher) Dispatch(ctx context.Context, inst *instance.Instance) {
	if inst.Definition == nil || inst.Definition.Report.Delivery == nil {
		return
	}
	delivery := inst.Definition.Report.Delivery
	if len(delivery.ChannelIDs) == 0 {
		return
	}

	hits, err := d.querier.Hits(ctx, inst)
	if err != nil {
		d.logger.Warn("hit count unavailable for notification",
			zap.String("instance_id", inst.ID), zap.Error(err))
	}
	msg := Build(delivery, ReportLink(inst.Definition), hits)

	for _, channelID := range delivery.ChannelIDs {
		payload, merr := json.Marshal(task.NotificationSendPayload{
			ChannelID:  channelID,
			Title:      msg.Title,
			Text:       msg.Text,
			HTML:       msg.HTML,
			InstanceID: inst.ID,
		})
		if merr != nil {
			d.logger.Error("failed to encode notification payload",
				zap.String("instance_id", inst.ID), zap.Error(merr))
			continue
		}
		if _, qerr := d.enqueuer.Enqueue(ctx, asynq.NewTask(task.TypeNotificationSend, payload), asynq.Queue("low")); qerr != nil {
			d.logger.Error("failed to enqueue notification",
				zap.String("instance_id", inst.ID),
				zap.String("channel_id", channelID),
				zap.Error(qerr))
		}
	}
}

// Handler consumes queued send tasks: resolve the channel, then send.
type Handler struct {
	resolver Resolver
	sender   Sender
	logger   *zap.Logger
}

func NewHandler(resolver Resolver, sender Sender, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.L()
	}
	return &Handler{resolver: resolver, sender: sender, logger: logger}
}

func (h *Handler) HandleNotificationSend(ctx context.Context, t *asynq.Task) error {
	var payload task.NotificationSendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("malformed notification payload", zap.Error(err))
		return nil // not retryable
	}

	ch, err := h.resolver.ResolveChannel(ctx, payload.ChannelID)
	if err != nil || ch == nil {
		h.logger.Error("notification channel not resolvable, dropping message",
			zap.String("channel_id", payload.ChannelID),
			zap.String("instance_id", payload.InstanceID),
			zap.Error(err))
		return nil
	}

	return h.sender.Send(ctx, ch, Message{
		Title: payload.Title,
		Text:  payload.Text,
		HTML:  payload.HTML,
	})
}

// RegisterHandlers attaches the notification handler to the task mux.
func RegisterHandlers(mux *asynq.ServeMux, h *Handler) {
	mux.HandleFunc(task.TypeNotificationSend, h.HandleNotificationSend)
}
