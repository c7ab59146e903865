package entity

import (
	"encoding/json"
	"errors"
	"time"
)

type EntryType string

const (
	EntryPaymentIntentCreated EntryType = "payment_intent_created"
	EntryPaymentSucceeded     EntryType = "payment_succeeded"
	EntryPaymentFailed        EntryType = "payment_failed"
	EntryError                EntryType = "error"
	EntryServerError          EntryType = "server_error"
)

// Payload keys shared by writers and replay.
const (
	FieldPaymentIntentID = "payment_intent_id"
	FieldAmount          = "amount"
	FieldCurrency        = "currency"
	FieldCustomerID      = "customer_id"
	FieldStatus          = "status"
	FieldError           = "error"
	FieldStage           = "stage"
	FieldEventID         = "event_id"
	FieldEventType       = "event_type"
	FieldEmail           = "email"
	FieldRequestID       = "request_id"
	FieldPath            = "path"
	FieldSource          = "source"
)

// SourceWebhook marks entries written from a verified provider event rather
// than from a local API call.
const SourceWebhook = "webhook"

var ErrMalformedEntry = errors.New("malformed log entry")

// LogEntry is one immutable record of the transaction log. It is encoded as a
// single flat JSON object; timestamp and type take precedence over payload
// keys with the same name.
type LogEntry struct {
	Timestamp time.Time
	Type      EntryType
	Payload   map[string]interface{}
}

func (e LogEntry) Valid() bool {
	switch e.Type {
	case EntryPaymentIntentCreated, EntryPaymentSucceeded, EntryPaymentFailed, EntryError, EntryServerError:
		return !e.Timestamp.IsZero()
	default:
		return false
	}
}

func (e LogEntry) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(e.Payload)+2)
	for k, v := range e.Payload {
		flat[k] = v
	}
	flat["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	flat["type"] = string(e.Type)
	return json.Marshal(flat)
}

func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	rawTS, _ := flat["timestamp"].(string)
	rawType, _ := flat["type"].(string)
	if rawTS == "" || rawType == "" {
		return ErrMalformedEntry
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return ErrMalformedEntry
	}
	delete(flat, "timestamp")
	delete(flat, "type")

	e.Timestamp = ts
	e.Type = EntryType(rawType)
	e.Payload = flat
	return nil
}

// String returns the payload value for key, or "" when absent or not a string.
func (e LogEntry) String(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// Int64 returns the payload value for key as an integer. Values decoded from
// JSON arrive as float64.
func (e LogEntry) Int64(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}
