package txlog

import (
	"sort"

	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
)

// Replay folds entries into the current record per payment intent id. Later
// entries win; fields missing from a later entry keep their earlier value. A
// created entry logged after a terminal outcome (provider events arrive out of
// order) only fills in missing fields.
func Replay(entries []entity.LogEntry) map[string]*entity.PaymentIntentRecord {
	records := make(map[string]*entity.PaymentIntentRecord)

	for _, entry := range entries {
		id := entry.String(entity.FieldPaymentIntentID)
		if id == "" {
			continue
		}

		var status entity.PaymentIntentStatus
		switch entry.Type {
		case entity.EntryPaymentIntentCreated:
			status = entity.PaymentIntentCreated
		case entity.EntryPaymentSucceeded:
			status = entity.PaymentIntentSucceeded
		case entity.EntryPaymentFailed:
			status = entity.PaymentIntentFailed
		default:
			continue
		}

		record, ok := records[id]
		if !ok {
			record = &entity.PaymentIntentRecord{
				ID:        id,
				Status:    entity.PaymentIntentUnknown,
				CreatedAt: entry.Timestamp,
			}
			records[id] = record
		}

		if status == entity.PaymentIntentCreated && record.Status.Terminal() {
			fillMissing(record, entry)
			continue
		}

		record.Status = status
		record.UpdatedAt = entry.Timestamp
		if amount := entry.Int64(entity.FieldAmount); amount > 0 {
			record.Amount = amount
		}
		if currency := entry.String(entity.FieldCurrency); currency != "" {
			record.Currency = currency
		}
		if customerID := entry.String(entity.FieldCustomerID); customerID != "" {
			record.CustomerID = customerID
		}
		if status == entity.PaymentIntentFailed {
			record.LastError = entry.String(entity.FieldError)
		}
	}

	return records
}

func fillMissing(record *entity.PaymentIntentRecord, entry entity.LogEntry) {
	if record.Amount == 0 {
		record.Amount = entry.Int64(entity.FieldAmount)
	}
	if record.Currency == "" {
		record.Currency = entry.String(entity.FieldCurrency)
	}
	if record.CustomerID == "" {
		record.CustomerID = entry.String(entity.FieldCustomerID)
	}
}

// SortedRecords returns records ordered by creation time, then id.
func SortedRecords(records map[string]*entity.PaymentIntentRecord) []*entity.PaymentIntentRecord {
	items := make([]*entity.PaymentIntentRecord, 0, len(records))
	for _, record := range records {
		items = append(items, record)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}
