package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	HeaderStripeSignature = "Stripe-Signature"
	HeaderSignature       = "X-Signature"

	// MaxWebhookBodyBytes bounds the raw webhook body read into memory.
	MaxWebhookBodyBytes = 64 * 1024
)

var ErrInvalidAmount = errors.New("amount must be an integer number of minor currency units")

type CreatePaymentIntentRequest struct {
	RawAmount json.RawMessage `json:"amount"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`

	amount int64
}

func (r *CreatePaymentIntentRequest) GetAmount() int64 { return r.amount }
func (r *CreatePaymentIntentRequest) GetEmail() string { return r.Email }
func (r *CreatePaymentIntentRequest) GetName() string  { return r.Name }

func NewCreatePaymentIntentRequestFromContext(ctx echo.Context) (*CreatePaymentIntentRequest, error) {
	var body CreatePaymentIntentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	amount, err := parseMinorUnits(body.RawAmount)
	if err != nil {
		return nil, err
	}
	body.amount = amount
	body.Email = strings.TrimSpace(body.Email)
	body.Name = strings.TrimSpace(body.Name)

	return &body, nil
}

func (r *CreatePaymentIntentRequest) Validate() error {
	if r.GetAmount() <= 0 {
		return errors.New("amount must be > 0")
	}
	if strings.TrimSpace(r.GetEmail()) == "" {
		return errors.New("email is required")
	}
	if strings.TrimSpace(r.GetName()) == "" {
		return errors.New("name is required")
	}
	return nil
}

// parseMinorUnits accepts only a bare JSON integer. Quoted numbers, decimals
// and exponents are rejected rather than coerced.
func parseMinorUnits(raw json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, nil
	}
	amount, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

type GetPaymentRequest struct {
	Id string
}

func (r *GetPaymentRequest) GetId() string { return r.Id }

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	return &GetPaymentRequest{Id: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.GetId() == "" {
		return errors.New("payment id is required")
	}
	if strings.ContainsAny(r.GetId(), "/?#") {
		return errors.New("invalid payment id")
	}
	return nil
}

type CreateSetupIntentRequest struct {
	CustomerId string `json:"customerId"`
	VendorId   string `json:"vendorId"`
}

// GetCustomerId returns the customer to attach the setup intent to. vendorId is
// accepted as an alias.
func (r *CreateSetupIntentRequest) GetCustomerId() string {
	if r.CustomerId != "" {
		return r.CustomerId
	}
	return r.VendorId
}

func NewCreateSetupIntentRequestFromContext(ctx echo.Context) (*CreateSetupIntentRequest, error) {
	var body CreateSetupIntentRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.CustomerId = strings.TrimSpace(body.CustomerId)
	body.VendorId = strings.TrimSpace(body.VendorId)
	return &body, nil
}

func (r *CreateSetupIntentRequest) Validate() error {
	if r.CustomerId != "" && r.VendorId != "" && r.CustomerId != r.VendorId {
		return errors.New("customerId and vendorId must match when both are set")
	}
	return nil
}

type SavePaymentMethodRequest struct {
	PaymentMethodId string `json:"paymentMethodId"`
	CustomerId      string `json:"customerId"`
}

func (r *SavePaymentMethodRequest) GetPaymentMethodId() string { return r.PaymentMethodId }
func (r *SavePaymentMethodRequest) GetCustomerId() string      { return r.CustomerId }

func NewSavePaymentMethodRequestFromContext(ctx echo.Context) (*SavePaymentMethodRequest, error) {
	var body SavePaymentMethodRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PaymentMethodId = strings.TrimSpace(body.PaymentMethodId)
	body.CustomerId = strings.TrimSpace(body.CustomerId)
	return &body, nil
}

func (r *SavePaymentMethodRequest) Validate() error {
	if r.GetPaymentMethodId() == "" {
		return errors.New("paymentMethodId is required")
	}
	if r.GetCustomerId() == "" {
		return errors.New("customerId is required")
	}
	return nil
}

// WebhookRequest carries the byte-exact body; it must not be decoded before the
// signature has been checked.
type WebhookRequest struct {
	Payload   []byte
	Signature string
}

func (r *WebhookRequest) GetPayload() []byte    { return r.Payload }
func (r *WebhookRequest) GetSignature() string { return r.Signature }

func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	signature := strings.TrimSpace(ctx.Request().Header.Get(HeaderStripeSignature))
	if signature == "" {
		signature = strings.TrimSpace(ctx.Request().Header.Get(HeaderSignature))
	}

	rawBody, err := io.ReadAll(io.LimitReader(ctx.Request().Body, MaxWebhookBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(rawBody) > MaxWebhookBodyBytes {
		return nil, errors.New("webhook payload too large")
	}

	return &WebhookRequest{Payload: rawBody, Signature: signature}, nil
}

func (r *WebhookRequest) Validate() error {
	if r.GetSignature() == "" {
		return errors.New("signature header is required")
	}
	if len(r.GetPayload()) == 0 {
		return errors.New("payload is required")
	}
	return nil
}
