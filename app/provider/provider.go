package provider

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured = errors.New("provider is not configured")
	ErrNotFound      = errors.New("provider object not found")
)

type CreateCustomerInput struct {
	Email string
	Name  string
}

type Customer struct {
	ID string
}

type CreatePaymentIntentInput struct {
	Amount         int64
	Currency       string
	CustomerID     string
	ReceiptEmail   string
	IdempotencyKey string
	Metadata       map[string]string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	CustomerID   string
	Status       string
	Created      int64
	Charges      []Charge
}

type Charge struct {
	Amount     int64
	ReceiptURL string
	Status     string
}

type CreateSetupIntentInput struct {
	CustomerID string
}

type SetupIntent struct {
	ID           string
	ClientSecret string
}

type AttachPaymentMethodInput struct {
	PaymentMethodID string
	CustomerID      string
}

// Provider is the external payment processor. Every call blocks on a network
// round trip and must honor ctx cancellation.
type Provider interface {
	Configured() bool
	CreateCustomer(ctx context.Context, input *CreateCustomerInput) (*Customer, error)
	CreatePaymentIntent(ctx context.Context, input *CreatePaymentIntentInput) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	CreateSetupIntent(ctx context.Context, input *CreateSetupIntentInput) (*SetupIntent, error)
	AttachPaymentMethod(ctx context.Context, input *AttachPaymentMethodInput) error
}
