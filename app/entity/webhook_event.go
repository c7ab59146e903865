package entity

import "encoding/json"

// WebhookEvent is a signature-checked provider event. It only lives for the
// duration of the webhook request.
type WebhookEvent struct {
	ID       string
	Type     string
	ObjectID string
	Raw      json.RawMessage
}
