package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
	"github.com/vibast-solutions/ms-go-payment-intents/app/repository"
)

const (
	mirrorTimeout   = 3 * time.Second
	maxErrorTextLen = 1024
)

// record appends one entry. Write failures are logged and swallowed: they must
// never change the outcome reported to the caller.
func (s *PaymentService) record(ctx context.Context, entryType entity.EntryType, payload map[string]interface{}) {
	entry := entity.LogEntry{
		Timestamp: s.now().UTC(),
		Type:      entryType,
		Payload:   payload,
	}
	logger := s.logger.WithField("entry_type", entryType)

	if err := s.txLog.Append(entry); err != nil {
		logger.WithError(err).Error("Failed to append transaction log entry")
		return
	}

	if s.mirror == nil {
		return
	}
	mirrorCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()
	if err := s.mirror.Create(mirrorCtx, entry); err != nil && !errors.Is(err, repository.ErrLogEntryAlreadyExists) {
		logger.WithError(err).Warn("Failed to mirror transaction log entry")
	}
}

func (s *PaymentService) recordStageFailure(ctx context.Context, stage string, cause error, amount int64, email, customerID string) {
	payload := map[string]interface{}{
		entity.FieldStage:  stage,
		entity.FieldError:  truncate(cause.Error(), maxErrorTextLen),
		entity.FieldAmount: amount,
		entity.FieldEmail:  email,
	}
	if customerID != "" {
		payload[entity.FieldCustomerID] = customerID
	}
	s.record(ctx, entity.EntryError, payload)
}

// RecordServerError logs an unhandled request failure.
func (s *PaymentService) RecordServerError(ctx context.Context, requestID, path string, cause error) {
	payload := map[string]interface{}{
		entity.FieldPath: path,
	}
	if cause != nil {
		payload[entity.FieldError] = truncate(cause.Error(), maxErrorTextLen)
	}
	if requestID != "" {
		payload[entity.FieldRequestID] = requestID
	}
	s.record(ctx, entity.EntryServerError, payload)
}

// truncate cuts value to at most max bytes without splitting a rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
