package task

// Task type names consumed by the worker mux.
const (
	TypeReportRun        = "report:run"
	TypeNotificationSend = "notification:send"
)

// ReportRunPayload is enqueued by the schedule when a definition fires.
type ReportRunPayload struct {
	DefinitionID string `json:"definition_id"`
}

// NotificationSendPayload carries a fully built delivery message.
type NotificationSendPayload struct {
	ChannelID  string `json:"channel_id"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	HTML       string `json:"html,omitempty"`
	InstanceID string `json:"instance_id"`
}
