package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
)

type StripeConfig struct {
	SecretKey   string
	HTTPTimeout time.Duration
	// BaseURL overrides the API endpoint; used by tests.
	BaseURL string
}

var _ Provider = (*StripeProvider)(nil)

type StripeProvider struct {
	cfg    StripeConfig
	client *stripe.Client
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(2),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(base, "/"))
		backendCfg.MaxNetworkRetries = stripe.Int64(0)
	}

	return &StripeProvider{
		cfg:    cfg,
		client: stripe.NewClient(cfg.SecretKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backendCfg))),
	}
}

func (p *StripeProvider) Configured() bool {
	return strings.TrimSpace(p.cfg.SecretKey) != ""
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, input *CreateCustomerInput) (*Customer, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	customer, err := p.client.V1Customers.Create(ctx, &stripe.CustomerCreateParams{
		Email: stripe.String(input.Email),
		Name:  stripe.String(input.Name),
	})
	if err != nil {
		return nil, translateStripeError("create customer", err)
	}

	return &Customer{ID: customer.ID}, nil
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, input *CreatePaymentIntentInput) (*PaymentIntent, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(input.Amount),
		Currency: stripe.String(strings.ToLower(input.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	}
	if input.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(input.ReceiptEmail)
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := p.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, translateStripeError("create payment intent", err)
	}

	return paymentIntentFromStripe(intent), nil
}

func (p *StripeProvider) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	params := &stripe.PaymentIntentRetrieveParams{}
	params.AddExpand("latest_charge")

	intent, err := p.client.V1PaymentIntents.Retrieve(ctx, id, params)
	if err != nil {
		return nil, translateStripeError("retrieve payment intent", err)
	}

	return paymentIntentFromStripe(intent), nil
}

func (p *StripeProvider) CreateSetupIntent(ctx context.Context, input *CreateSetupIntentInput) (*SetupIntent, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	params := &stripe.SetupIntentCreateParams{
		Usage: stripe.String(string(stripe.SetupIntentUsageOffSession)),
	}
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	}

	intent, err := p.client.V1SetupIntents.Create(ctx, params)
	if err != nil {
		return nil, translateStripeError("create setup intent", err)
	}

	return &SetupIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (p *StripeProvider) AttachPaymentMethod(ctx context.Context, input *AttachPaymentMethodInput) error {
	if !p.Configured() {
		return ErrNotConfigured
	}

	_, err := p.client.V1PaymentMethods.Attach(ctx, input.PaymentMethodID, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(input.CustomerID),
	})
	if err != nil {
		return translateStripeError("attach payment method", err)
	}
	return nil
}

func paymentIntentFromStripe(intent *stripe.PaymentIntent) *PaymentIntent {
	result := &PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     string(intent.Currency),
		Status:       string(intent.Status),
		Created:      intent.Created,
		Charges:      []Charge{},
	}
	if intent.Customer != nil {
		result.CustomerID = intent.Customer.ID
	}
	if charge := intent.LatestCharge; charge != nil && charge.ID != "" {
		result.Charges = append(result.Charges, Charge{
			Amount:     charge.Amount,
			ReceiptURL: charge.ReceiptURL,
			Status:     string(charge.Status),
		})
	}
	return result
}

func translateStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("stripe %s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("stripe %s failed: status=%d type=%s code=%s: %s", op, stripeErr.HTTPStatusCode, stripeErr.Type, stripeErr.Code, stripeErr.Msg)
	}
	return fmt.Errorf("stripe %s failed: %w", op, err)
}
