package provider

import (
	"encoding/json"
	"testing"

	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
)

func TestNormalizeSucceeded(t *testing.T) {
	evt := &entity.WebhookEvent{
		ID:       "evt_1",
		Type:     "payment_intent.succeeded",
		ObjectID: "pi_1",
		Raw:      json.RawMessage(`{"id":"pi_1","object":"payment_intent","amount":2500,"currency":"eur","customer":"cus_1","status":"succeeded"}`),
	}

	got := Normalize(evt)
	if got.Kind != EventSucceeded {
		t.Fatalf("expected succeeded, got %s", got.Kind)
	}
	if got.PaymentIntentID != "pi_1" || got.Amount != 2500 || got.Currency != "eur" || got.CustomerID != "cus_1" {
		t.Fatalf("unexpected normalized event: %+v", got)
	}
	if got.EventID != "evt_1" {
		t.Fatalf("expected event id to be carried, got %q", got.EventID)
	}
}

func TestNormalizeFailedCarriesErrorMessage(t *testing.T) {
	evt := &entity.WebhookEvent{
		Type: "payment_intent.payment_failed",
		Raw:  json.RawMessage(`{"id":"pi_2","amount":900,"last_payment_error":{"message":"Your card was declined.","code":"card_declined"}}`),
	}

	got := Normalize(evt)
	if got.Kind != EventFailed {
		t.Fatalf("expected failed, got %s", got.Kind)
	}
	if got.PaymentIntentID != "pi_2" || got.ErrorMessage != "Your card was declined." {
		t.Fatalf("unexpected normalized event: %+v", got)
	}
}

func TestNormalizeToleratesMissingFields(t *testing.T) {
	got := Normalize(&entity.WebhookEvent{Type: "payment_intent.payment_failed", ObjectID: "pi_3", Raw: json.RawMessage(`{"id":"pi_3"}`)})
	if got.Kind != EventFailed || got.PaymentIntentID != "pi_3" {
		t.Fatalf("unexpected normalized event: %+v", got)
	}
	if got.Amount != 0 || got.CustomerID != "" || got.ErrorMessage != "" {
		t.Fatalf("expected empty optional fields, got %+v", got)
	}

	got = Normalize(&entity.WebhookEvent{Type: "payment_intent.succeeded", ObjectID: "pi_4"})
	if got.Kind != EventSucceeded || got.PaymentIntentID != "pi_4" {
		t.Fatalf("expected object id fallback, got %+v", got)
	}
}

func TestNormalizeUnknownTypesAreIgnored(t *testing.T) {
	for _, eventType := range []string{"charge.refunded", "customer.created", "payment_intent.canceled", ""} {
		got := Normalize(&entity.WebhookEvent{Type: eventType, Raw: json.RawMessage(`{"id":"x"}`)})
		if got.Kind != EventIgnored {
			t.Fatalf("%q: expected ignored, got %s", eventType, got.Kind)
		}
	}
	if Normalize(nil).Kind != EventIgnored {
		t.Fatal("expected nil event to be ignored")
	}
}

func TestNormalizeCreated(t *testing.T) {
	got := Normalize(&entity.WebhookEvent{Type: "payment_intent.created", Raw: json.RawMessage(`{"id":"pi_5","amount":100}`)})
	if got.Kind != EventCreated || got.PaymentIntentID != "pi_5" {
		t.Fatalf("unexpected normalized event: %+v", got)
	}
}
