package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reporting-scheduler/pkg/task"
	"reporting-scheduler/services/definition"
	"reporting-scheduler/services/instance"
)

type capturingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *capturingEnqueuer) Enqueue(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, t)
	return &asynq.TaskInfo{}, nil
}

func deliveredInstance(channels []string) *instance.Instance {
	return &instance.Instance{
		ID: "inst-1",
		Definition: &definition.Details{
			ID: "def-1",
			Report: definition.ReportDefinition{
				Source: definition.Source{Origin: "https://analytics.example.com"},
				Format: definition.Format{Duration: definition.Duration(time.Hour)},
				Delivery: &definition.Delivery{
					Title:           "Weekly sales",
					TextDescription: "see {{urlDefinition}}",
					ChannelIDs:      channels,
				},
			},
		},
	}
}

func newTestDispatcher(enq task.Enqueuer) *Dispatcher {
	return NewDispatcher(DispatcherParams{
		Enqueuer: enq,
		Querier:  NewNoopQuerier(),
		Logger:   zap.NewNop(),
	})
}

func TestDispatchFansOutPerChannel(t *testing.T) {
	enq := &capturingEnqueuer{}
	d := newTestDispatcher(enq)

	d.Dispatch(context.Background(), deliveredInstance([]string{"chan-1", "chan-2"}))

	require.Len(t, enq.tasks, 2)
	var payload task.NotificationSendPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, task.TypeNotificationSend, enq.tasks[0].Type())
	assert.Equal(t, "chan-1", payload.ChannelID)
	assert.Equal(t, "inst-1", payload.InstanceID)
	assert.Equal(t, "see https://analytics.example.com/reports#/report_definition_details/def-1", payload.Text)
}

func TestDispatchSkipsInstancesWithoutDelivery(t *testing.T) {
	enq := &capturingEnqueuer{}
	d := newTestDispatcher(enq)

	d.Dispatch(context.Background(), &instance.Instance{ID: "inst-1"})
	d.Dispatch(context.Background(), deliveredInstance(nil))

	assert.Empty(t, enq.tasks)
}

func TestDispatchSwallowsQueueFailures(t *testing.T) {
	enq := &capturingEnqueuer{err: context.DeadlineExceeded}
	d := newTestDispatcher(enq)

	// Must not panic or propagate; the report itself already succeeded.
	d.Dispatch(context.Background(), deliveredInstance([]string{"chan-1"}))
	assert.Empty(t, enq.tasks)
}

type capturingSender struct {
	sent []Message
	ids  []string
}

func (s *capturingSender) Send(_ context.Context, ch *Channel, msg Message) error {
	s.ids = append(s.ids, ch.ID)
	s.sent = append(s.sent, msg)
	return nil
}

type failingResolver struct{}

func (failingResolver) ResolveChannel(context.Context, string) (*Channel, error) {
	return nil, context.DeadlineExceeded
}

func TestHandleNotificationSend(t *testing.T) {
	sender := &capturingSender{}
	h := NewHandler(NewStaticResolver(), sender, zap.NewNop())

	payload, err := json.Marshal(task.NotificationSendPayload{
		ChannelID:  "chan-1",
		Title:      "Weekly sales",
		Text:       "ready",
		InstanceID: "inst-1",
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleNotificationSend(context.Background(), asynq.NewTask(task.TypeNotificationSend, payload)))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"chan-1"}, sender.ids)
	assert.Equal(t, "Weekly sales", sender.sent[0].Title)
}

func TestHandleNotificationSendDropsMalformedPayload(t *testing.T) {
	sender := &capturingSender{}
	h := NewHandler(NewStaticResolver(), sender, zap.NewNop())

	err := h.HandleNotificationSend(context.Background(), asynq.NewTask(task.TypeNotificationSend, []byte("{")))
	assert.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleNotificationSendDropsUnresolvableChannel(t *testing.T) {
	sender := &capturingSender{}
	h := NewHandler(failingResolver{}, sender, zap.NewNop())

	payload, err := json.Marshal(task.NotificationSendPayload{ChannelID: "gone", InstanceID: "inst-1"})
	require.NoError(t, err)

	// Dropped with a log line, not retried through the queue.
	err = h.HandleNotificationSend(context.Background(), asynq.NewTask(task.TypeNotificationSend, payload))
	assert.NoError(t, err)
	assert.Empty(t, sender.sent)
}
