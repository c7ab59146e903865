package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
	"github.com/vibast-solutions/ms-go-payment-intents/app/factory"
	"github.com/vibast-solutions/ms-go-payment-intents/app/provider"
	"github.com/vibast-solutions/ms-go-payment-intents/config"
)

// MaxAmount is the largest accepted amount in minor units.
const MaxAmount int64 = 99_999_999

const (
	defaultProviderTimeout = 15 * time.Second
	defaultCurrency        = "eur"

	stageCustomer      = "customer"
	stagePaymentIntent = "payment_intent"
)

type createPaymentIntentRequest interface {
	GetAmount() int64
	GetEmail() string
	GetName() string
}

type createSetupIntentRequest interface {
	GetCustomerId() string
}

type savePaymentMethodRequest interface {
	GetPaymentMethodId() string
	GetCustomerId() string
}

// TransactionLog is the durable, append-only record of payment outcomes.
type TransactionLog interface {
	Append(entry entity.LogEntry) error
	ReadAll() ([]entity.LogEntry, error)
}

// LogMirror receives a copy of every appended entry. It is optional and never
// authoritative.
type LogMirror interface {
	Create(ctx context.Context, entry entity.LogEntry) error
	ListByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]entity.LogEntry, error)
	Count(ctx context.Context) (int64, error)
}

type CreatePaymentIntentResult struct {
	ClientSecret string
	PaymentID    string
	CustomerID   string
}

type customerStage struct {
	customerID string
}

type intentStage struct {
	intent *provider.PaymentIntent
}

type PaymentService struct {
	provider    provider.Provider
	txLog       TransactionLog
	mirror      LogMirror
	stripeCfg   config.StripeConfig
	paymentsCfg config.PaymentsConfig
	jobsCfg     config.JobsConfig
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewPaymentService(
	paymentProvider provider.Provider,
	txLog TransactionLog,
	mirror LogMirror,
	stripeCfg config.StripeConfig,
	paymentsCfg config.PaymentsConfig,
	jobsCfg config.JobsConfig,
) *PaymentService {
	return &PaymentService{
		provider:    paymentProvider,
		txLog:       txLog,
		mirror:      mirror,
		stripeCfg:   stripeCfg,
		paymentsCfg: paymentsCfg,
		jobsCfg:     jobsCfg,
		logger:      factory.NewModuleLogger("payment-service"),
		now:         time.Now,
	}
}

func (s *PaymentService) ProviderConfigured() bool {
	return s.provider != nil && s.provider.Configured()
}

func (s *PaymentService) PublishableKey() string {
	return s.stripeCfg.PublishableKey
}

// CreatePaymentIntent creates a customer and then a payment intent for it.
// Exactly one log entry is appended for every request that passes validation:
// payment_intent_created on success, error otherwise.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, req createPaymentIntentRequest) (*CreatePaymentIntentResult, error) {
	amount := req.GetAmount()
	email := strings.TrimSpace(req.GetEmail())
	name := strings.TrimSpace(req.GetName())
	if err := validatePaymentInput(amount, email, name); err != nil {
		return nil, err
	}

	customer, err := s.createCustomer(ctx, email, name)
	if err != nil {
		s.recordStageFailure(ctx, stageCustomer, err, amount, email, "")
		return nil, fmt.Errorf("%w: create customer: %w", ErrProvider, err)
	}

	created, err := s.createIntent(ctx, customer, amount, email)
	if err != nil {
		s.recordStageFailure(ctx, stagePaymentIntent, err, amount, email, customer.customerID)
		return nil, fmt.Errorf("%w: create payment intent: %w", ErrProvider, err)
	}

	intent := created.intent
	recordedAmount := intent.Amount
	if recordedAmount <= 0 {
		recordedAmount = amount
	}
	currency := strings.ToLower(intent.Currency)
	if currency == "" {
		currency = s.currency()
	}

	s.record(ctx, entity.EntryPaymentIntentCreated, map[string]interface{}{
		entity.FieldPaymentIntentID: intent.ID,
		entity.FieldAmount:          recordedAmount,
		entity.FieldCurrency:        currency,
		entity.FieldCustomerID:      customer.customerID,
		entity.FieldStatus:          intent.Status,
	})

	return &CreatePaymentIntentResult{
		ClientSecret: intent.ClientSecret,
		PaymentID:    intent.ID,
		CustomerID:   customer.customerID,
	}, nil
}

func (s *PaymentService) createCustomer(ctx context.Context, email, name string) (customerStage, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	defer cancel()

	customer, err := s.provider.CreateCustomer(callCtx, &provider.CreateCustomerInput{Email: email, Name: name})
	if err != nil {
		return customerStage{}, err
	}
	if customer == nil || strings.TrimSpace(customer.ID) == "" {
		return customerStage{}, errors.New("provider returned a customer without id")
	}
	return customerStage{customerID: customer.ID}, nil
}

func (s *PaymentService) createIntent(ctx context.Context, customer customerStage, amount int64, email string) (intentStage, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	defer cancel()

	intent, err := s.provider.CreatePaymentIntent(callCtx, &provider.CreatePaymentIntentInput{
		Amount:         amount,
		Currency:       s.currency(),
		CustomerID:     customer.customerID,
		ReceiptEmail:   email,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return intentStage{}, err
	}
	if intent == nil || strings.TrimSpace(intent.ID) == "" {
		return intentStage{}, errors.New("provider returned a payment intent without id")
	}
	return intentStage{intent: intent}, nil
}

// GetPaymentIntent reads the current provider-side state. Nothing is logged.
func (s *PaymentService) GetPaymentIntent(ctx context.Context, id string) (*provider.PaymentIntent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: payment id is required", ErrValidation)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	defer cancel()

	intent, err := s.provider.GetPaymentIntent(callCtx, id)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("%w: retrieve payment intent: %w", ErrProvider, err)
	}
	return intent, nil
}

func (s *PaymentService) CreateSetupIntent(ctx context.Context, req createSetupIntentRequest) (*provider.SetupIntent, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	defer cancel()

	intent, err := s.provider.CreateSetupIntent(callCtx, &provider.CreateSetupIntentInput{
		CustomerID: strings.TrimSpace(req.GetCustomerId()),
	})
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer does not exist", ErrValidation)
		}
		return nil, fmt.Errorf("%w: create setup intent: %w", ErrProvider, err)
	}
	return intent, nil
}

func (s *PaymentService) SavePaymentMethod(ctx context.Context, req savePaymentMethodRequest) error {
	paymentMethodID := strings.TrimSpace(req.GetPaymentMethodId())
	customerID := strings.TrimSpace(req.GetCustomerId())
	if paymentMethodID == "" || customerID == "" {
		return fmt.Errorf("%w: paymentMethodId and customerId are required", ErrValidation)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	defer cancel()

	err := s.provider.AttachPaymentMethod(callCtx, &provider.AttachPaymentMethodInput{
		PaymentMethodID: paymentMethodID,
		CustomerID:      customerID,
	})
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("%w: attach payment method: %w", ErrProvider, err)
	}
	return nil
}

func (s *PaymentService) providerTimeout() time.Duration {
	if s.paymentsCfg.ProviderTimeout > 0 {
		return s.paymentsCfg.ProviderTimeout
	}
	return defaultProviderTimeout
}

func (s *PaymentService) currency() string {
	if c := strings.ToLower(strings.TrimSpace(s.paymentsCfg.Currency)); c != "" {
		return c
	}
	return defaultCurrency
}

func validatePaymentInput(amount int64, email, name string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}
	if amount > MaxAmount {
		return fmt.Errorf("%w: amount must be <= %d", ErrValidation, MaxAmount)
	}
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return nil
}
