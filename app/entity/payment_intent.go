package entity

import "time"

type PaymentIntentStatus string

const (
	PaymentIntentCreated   PaymentIntentStatus = "created"
	PaymentIntentSucceeded PaymentIntentStatus = "succeeded"
	PaymentIntentFailed    PaymentIntentStatus = "failed"
	PaymentIntentUnknown   PaymentIntentStatus = "unknown"
)

// Terminal reports whether no further transition is expected.
func (s PaymentIntentStatus) Terminal() bool {
	return s == PaymentIntentSucceeded || s == PaymentIntentFailed
}

// PaymentIntentRecord is the locally known state of a provider payment intent.
// It is never stored; it is derived from the transaction log.
type PaymentIntentRecord struct {
	ID         string              `json:"id"`
	Amount     int64               `json:"amount"`
	Currency   string              `json:"currency"`
	CustomerID string              `json:"customerId"`
	Status     PaymentIntentStatus `json:"status"`
	LastError  string              `json:"lastError,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}
