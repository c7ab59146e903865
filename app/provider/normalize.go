package provider

import (
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
)

type EventKind int

const (
	EventIgnored EventKind = iota
	EventCreated
	EventSucceeded
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	default:
		return "ignored"
	}
}

// NormalizedEvent is the provider-independent projection of a webhook event.
// Absent fields are left empty.
type NormalizedEvent struct {
	Kind            EventKind
	EventID         string
	EventType       string
	PaymentIntentID string
	Amount          int64
	Currency        string
	CustomerID      string
	ErrorMessage    string
}

// Normalize maps a verified event onto the internal lifecycle taxonomy.
// Unknown event types map to EventIgnored.
func Normalize(evt *entity.WebhookEvent) NormalizedEvent {
	result := NormalizedEvent{Kind: EventIgnored}
	if evt == nil {
		return result
	}

	result.EventID = evt.ID
	result.EventType = evt.Type
	result.PaymentIntentID = evt.ObjectID

	switch evt.Type {
	case string(stripe.EventTypePaymentIntentCreated):
		result.Kind = EventCreated
	case string(stripe.EventTypePaymentIntentSucceeded):
		result.Kind = EventSucceeded
	case string(stripe.EventTypePaymentIntentPaymentFailed):
		result.Kind = EventFailed
	default:
		return result
	}

	var intent stripe.PaymentIntent
	if len(evt.Raw) == 0 || json.Unmarshal(evt.Raw, &intent) != nil {
		return result
	}

	if id := strings.TrimSpace(intent.ID); id != "" {
		result.PaymentIntentID = id
	}
	result.Amount = intent.Amount
	result.Currency = string(intent.Currency)
	if intent.Customer != nil {
		result.CustomerID = intent.Customer.ID
	}
	if result.Kind == EventFailed && intent.LastPaymentError != nil {
		result.ErrorMessage = strings.TrimSpace(intent.LastPaymentError.Msg)
	}

	return result
}
