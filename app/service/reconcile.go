package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
	"github.com/vibast-solutions/ms-go-payment-intents/app/repository"
	"github.com/vibast-solutions/ms-go-payment-intents/app/txlog"
)

const defaultReconcileStaleAfter = 30 * time.Minute

type ReconcileDrift struct {
	PaymentIntentID string                     `json:"paymentIntentId"`
	LocalStatus     entity.PaymentIntentStatus `json:"localStatus"`
	ProviderStatus  string                     `json:"providerStatus"`
}

type ReconcileReport struct {
	Checked int              `json:"checked"`
	Drifts  []ReconcileDrift `json:"drifts"`
	Missing []string         `json:"missing"`
}

// RunReconcileBatch compares intents still in created state past the stale
// window against the provider. It only reports; terminal outcomes are written
// by verified webhooks alone.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) (*ReconcileReport, error) {
	entries, err := s.txLog.ReadAll()
	if err != nil {
		return nil, err
	}

	staleAfter := s.jobsCfg.ReconcileStaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultReconcileStaleAfter
	}
	before := s.now().UTC().Add(-staleAfter)

	report := &ReconcileReport{Drifts: []ReconcileDrift{}, Missing: []string{}}
	var firstErr error
	for _, record := range txlog.SortedRecords(txlog.Replay(entries)) {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if record.Status != entity.PaymentIntentCreated || record.UpdatedAt.After(before) {
			continue
		}

		report.Checked++
		intent, err := s.GetPaymentIntent(ctx, record.ID)
		if err != nil {
			if errors.Is(err, ErrPaymentNotFound) {
				report.Missing = append(report.Missing, record.ID)
				s.logger.WithField("payment_intent_id", record.ID).Warn("Logged payment intent is unknown to the provider")
				continue
			}
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		if !providerStatusDrifted(intent.Status) {
			continue
		}
		report.Drifts = append(report.Drifts, ReconcileDrift{
			PaymentIntentID: record.ID,
			LocalStatus:     record.Status,
			ProviderStatus:  intent.Status,
		})
		s.logger.WithFields(logrus.Fields{
			"payment_intent_id": record.ID,
			"provider_status":   intent.Status,
			"age":               s.now().UTC().Sub(record.UpdatedAt).Round(time.Second).String(),
		}).Warn("Payment intent reached a terminal provider state without a logged webhook")
	}

	return report, firstErr
}

// providerStatusDrifted reports whether the provider state is one a webhook
// should already have delivered.
func providerStatusDrifted(status string) bool {
	switch status {
	case "succeeded", "canceled":
		return true
	default:
		return false
	}
}

// PaymentIntentRecords derives the current state of every logged intent.
func (s *PaymentService) PaymentIntentRecords() ([]*entity.PaymentIntentRecord, error) {
	entries, err := s.txLog.ReadAll()
	if err != nil {
		return nil, err
	}
	return txlog.SortedRecords(txlog.Replay(entries)), nil
}

func (s *PaymentService) PaymentIntentRecord(id string) (*entity.PaymentIntentRecord, error) {
	entries, err := s.txLog.ReadAll()
	if err != nil {
		return nil, err
	}
	record, ok := txlog.Replay(entries)[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return record, nil
}

type MirrorReport struct {
	Copied  int   `json:"copied"`
	Skipped int   `json:"skipped"`
	Total   int64 `json:"total"`
}

// MirrorLog copies every log entry into the mirror, skipping rows it already
// holds, and reports the mirror's row count afterwards.
func (s *PaymentService) MirrorLog(ctx context.Context) (*MirrorReport, error) {
	if s.mirror == nil {
		return nil, ErrMirrorNotConfigured
	}

	entries, err := s.txLog.ReadAll()
	if err != nil {
		return nil, err
	}

	report := &MirrorReport{}
	for _, entry := range entries {
		if err := s.mirror.Create(ctx, entry); err != nil {
			if errors.Is(err, repository.ErrLogEntryAlreadyExists) {
				report.Skipped++
				continue
			}
			return report, fmt.Errorf("mirror entry %d: %w", report.Copied+report.Skipped+1, err)
		}
		report.Copied++
	}

	total, err := s.mirror.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("count mirrored entries: %w", err)
	}
	report.Total = total
	return report, nil
}

// PaymentIntentHistory lists the entries recorded for one intent, oldest
// first. The mirror answers when configured; otherwise the file is scanned.
func (s *PaymentService) PaymentIntentHistory(ctx context.Context, id string) ([]entity.LogEntry, error) {
	id = strings.TrimSpace(id)

	var (
		history []entity.LogEntry
		err     error
	)
	if s.mirror != nil {
		history, err = s.mirror.ListByPaymentIntentID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list mirrored entries: %w", err)
		}
	} else {
		entries, err := s.txLog.ReadAll()
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.String(entity.FieldPaymentIntentID) == id {
				history = append(history, entry)
			}
		}
	}

	if len(history) == 0 {
		return nil, ErrPaymentNotFound
	}
	return history, nil
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
