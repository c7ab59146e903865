package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
	"github.com/vibast-solutions/ms-go-payment-intents/app/provider"
)

type webhookRequest interface {
	GetPayload() []byte
	GetSignature() string
}

// HandleWebhook verifies a provider event and records its lifecycle outcome.
// Nothing is decoded or logged for a payload whose signature does not verify.
func (s *PaymentService) HandleWebhook(ctx context.Context, req webhookRequest) (*provider.NormalizedEvent, error) {
	event, err := provider.ParseVerifiedEvent(
		req.GetPayload(),
		req.GetSignature(),
		s.stripeCfg.WebhookSecret,
		s.signatureTolerance(),
		s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureRejected, err)
	}

	normalized := provider.Normalize(event)
	logger := s.logger.WithFields(logrus.Fields{
		"event_id":          normalized.EventID,
		"event_type":        normalized.EventType,
		"payment_intent_id": normalized.PaymentIntentID,
	})

	switch normalized.Kind {
	case provider.EventSucceeded:
		s.record(ctx, entity.EntryPaymentSucceeded, outcomePayload(normalized))
	case provider.EventFailed:
		payload := outcomePayload(normalized)
		payload[entity.FieldError] = truncate(normalized.ErrorMessage, maxErrorTextLen)
		s.record(ctx, entity.EntryPaymentFailed, payload)
	case provider.EventCreated:
		payload := outcomePayload(normalized)
		payload[entity.FieldSource] = entity.SourceWebhook
		s.record(ctx, entity.EntryPaymentIntentCreated, payload)
	default:
		logger.Info("Ignoring unhandled webhook event")
	}

	return &normalized, nil
}

func outcomePayload(evt provider.NormalizedEvent) map[string]interface{} {
	payload := map[string]interface{}{
		entity.FieldPaymentIntentID: evt.PaymentIntentID,
		entity.FieldEventID:         evt.EventID,
		entity.FieldEventType:       evt.EventType,
	}
	if evt.Amount > 0 {
		payload[entity.FieldAmount] = evt.Amount
	}
	if evt.Currency != "" {
		payload[entity.FieldCurrency] = evt.Currency
	}
	if evt.CustomerID != "" {
		payload[entity.FieldCustomerID] = evt.CustomerID
	}
	return payload
}

func (s *PaymentService) signatureTolerance() time.Duration {
	if s.stripeCfg.SignatureToleranceSeconds > 0 {
		return time.Duration(s.stripeCfg.SignatureToleranceSeconds) * time.Second
	}
	return provider.DefaultSignatureTolerance
}
