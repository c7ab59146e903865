package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
	"github.com/vibast-solutions/ms-go-payment-intents/app/provider"
	"github.com/vibast-solutions/ms-go-payment-intents/app/service"
	"github.com/vibast-solutions/ms-go-payment-intents/app/txlog"
	"github.com/vibast-solutions/ms-go-payment-intents/app/types"
	"github.com/vibast-solutions/ms-go-payment-intents/config"
)

const controllerWebhookSecret = "whsec_controller"

type controllerProvider struct {
	customerCalls int
	createErr     error
	getIntent     *provider.PaymentIntent
	getErr        error
}

func (p *controllerProvider) Configured() bool { return true }

func (p *controllerProvider) CreateCustomer(context.Context, *provider.CreateCustomerInput) (*provider.Customer, error) {
	p.customerCalls++
	return &provider.Customer{ID: "cus_1"}, nil
}

func (p *controllerProvider) CreatePaymentIntent(_ context.Context, input *provider.CreatePaymentIntentInput) (*provider.PaymentIntent, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &provider.PaymentIntent{
		ID:           "pi_1",
		ClientSecret: "secret_x",
		Amount:       input.Amount,
		Currency:     input.Currency,
		CustomerID:   input.CustomerID,
		Status:       "requires_payment_method",
	}, nil
}

func (p *controllerProvider) GetPaymentIntent(context.Context, string) (*provider.PaymentIntent, error) {
	if p.getErr != nil {
		return nil, p.getErr
	}
	if p.getIntent == nil {
		return nil, provider.ErrNotFound
	}
	return p.getIntent, nil
}

func (p *controllerProvider) CreateSetupIntent(context.Context, *provider.CreateSetupIntentInput) (*provider.SetupIntent, error) {
	return &provider.SetupIntent{ID: "seti_1", ClientSecret: "seti_secret"}, nil
}

func (p *controllerProvider) AttachPaymentMethod(context.Context, *provider.AttachPaymentMethodInput) error {
	return nil
}

func newControllerForTest(t *testing.T, p provider.Provider, environment string) (*PaymentController, *txlog.FileLog) {
	t.Helper()
	l, err := txlog.Open(filepath.Join(t.TempDir(), "transactions.log"))
	if err != nil {
		t.Fatalf("open log failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	paymentService := service.NewPaymentService(
		p,
		l,
		nil,
		config.StripeConfig{PublishableKey: "pk_test_1", WebhookSecret: controllerWebhookSecret, SignatureToleranceSeconds: 300},
		config.PaymentsConfig{Currency: "eur", ProviderTimeout: time.Second},
		config.JobsConfig{},
	)
	return NewPaymentController(paymentService, config.AppConfig{Environment: environment}), l
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func logEntries(t *testing.T, l *txlog.FileLog) []entity.LogEntry {
	t.Helper()
	entries, err := l.ReadAll()
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	return entries
}

func TestHealth(t *testing.T) {
	ctrl, _ := newControllerForTest(t, &controllerProvider{}, config.EnvDevelopment)
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	_ = ctrl.Health(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload types.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Status != "ok" || !payload.ProviderConfigured || payload.Environment != config.EnvDevelopment {
		t.Fatalf("unexpected health payload: %+v", payload)
	}
}

func TestConfigExposesPublishableKey(t *testing.T) {
	ctrl, _ := newControllerForTest(t, &controllerProvider{}, config.EnvDevelopment)
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/config", nil), rec)

	_ = ctrl.Config(ctx)
	var payload types.ConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.PublishableKey != "pk_test_1" {
		t.Fatalf("unexpected publishable key: %q", payload.PublishableKey)
	}
}

func TestCreatePaymentIntentSuccess(t *testing.T) {
	ctrl, l := newControllerForTest(t, &controllerProvider{}, config.EnvDevelopment)
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(jsonRequest(http.MethodPost, "/create-payment-intent", `{"amount":2500,"email":"a@b.com","name":"A B"}`), rec)

	_ = ctrl.CreatePaymentIntent(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.CreatePaymentIntentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.ClientSecret != "secret_x" || payload.PaymentId != "pi_1" || payload.CustomerId != "cus_1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	entries := logEntries(t, l)
	if len(entries) != 1 || entries[0].Type != entity.EntryPaymentIntentCreated {
		t.Fatalf("expected one payment_intent_created entry, got %+v", entries)
	}
	if entries[0].String(entity.FieldPaymentIntentID) != "pi_1" || entries[0].Int64(entity.FieldAmount) != 2500 {
		t.Fatalf("unexpected entry payload: %v", entries[0].Payload)
	}
}

func TestCreatePaymentIntentValidationWritesNothing(t *testing.T) {
	for _, body := range []string{
		`{"amount":0,"email":"a@b.com","name":"A B"}`,
		`{"amount":"2500","email":"a@b.com","name":"A B"}`,
		`{"amount":25.5,"email":"a@b.com","name":"A B"}`,
		`{"amount":2500,"email":"","name":"A B"}`,
		`{"amount":2500,"email":"a@b.com"}`,
		`{"amount":100000000,"email":"a@b.com","name":"A B"}`,
		`{bad`,
	} {
		p := &controllerProvider{}
		ctrl, l := newControllerForTest(t, p, config.EnvDevelopment)
		e := echo.New()
		rec := httptest.NewRecorder()
		ctx := e.NewContext(jsonRequest(http.MethodPost, "/create-payment-intent", body), rec)

		_ = ctrl.CreatePaymentIntent(ctx)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
		if p.customerCalls != 0 {
			t.Fatalf("%s: expected no provider call", body)
		}
		if entries := logEntries(t, l); len(entries) != 0 {
			t.Fatalf("%s: expected empty log, got %d entries", body, len(entries))
		}
	}
}

func TestCreatePaymentIntentProviderErrorDetails(t *testing.T) {
	for _, tc := range []struct {
		environment string
		wantDetails bool
	}{
		{environment: config.EnvDevelopment, wantDetails: true},
		{environment: config.EnvProduction, wantDetails: false},
	} {
		ctrl, l := newControllerForTest(t, &controllerProvider{createErr: errors.New("stripe exploded")}, tc.environment)
		e := echo.New()
		rec := httptest.NewRecorder()
		ctx := e.NewContext(jsonRequest(http.MethodPost, "/create-payment-intent", `{"amount":2500,"email":"a@b.com","name":"A B"}`), rec)

		_ = ctrl.CreatePaymentIntent(ctx)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", tc.environment, rec.Code)
		}
		var payload types.ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if (payload.Details != "") != tc.wantDetails {
			t.Fatalf("%s: unexpected details %q", tc.environment, payload.Details)
		}

		entries := logEntries(t, l)
		if len(entries) != 1 || entries[0].Type != entity.EntryError {
			t.Fatalf("%s: expected one error entry, got %+v", tc.environment, entries)
		}
	}
}

func TestGetPayment(t *testing.T) {
	p := &controllerProvider{getIntent: &provider.PaymentIntent{
		ID:         "pi_1",
		Status:     "succeeded",
		Amount:     2500,
		Currency:   "eur",
		CustomerID: "cus_1",
		Created:    1700000000,
		Charges:    []provider.Charge{{Amount: 2500, ReceiptURL: "https://pay.example/r", Status: "succeeded"}},
	}}
	ctrl, _ := newControllerForTest(t, p, config.EnvDevelopment)
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/payment/pi_1", nil), rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("pi_1")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload types.PaymentView
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Id != "pi_1" || payload.Customer != "cus_1" || len(payload.Charges) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	ctrl, _ := newControllerForTest(t, &controllerProvider{}, config.EnvDevelopment)
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/payment/pi_missing", nil), rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("pi_missing")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateSetupIntentAndSavePaymentMethod(t *testing.T) {
	ctrl, _ := newControllerForTest(t, &controllerProvider{}, config.EnvDevelopment)
	e := echo.New()

	rec := httptest.NewRecorder()
	_ = ctrl.CreateSetupIntent(e.NewContext(jsonRequest(http.MethodPost, "/create-setup-intent", `{"customerId":"cus_1"}`), rec))
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"clientSecret":"seti_secret"`)) {
		t.Fatalf("unexpected setup intent response: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	_ = ctrl.SavePaymentMethod(e.NewContext(jsonRequest(http.MethodPost, "/save-payment-method", `{"paymentMethodId":"pm_1"}`), rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	_ = ctrl.SavePaymentMethod(e.NewContext(jsonRequest(http.MethodPost, "/save-payment-method", `{"paymentMethodId":"pm_1","customerId":"cus_1"}`), rec))
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"success":true`)) {
		t.Fatalf("unexpected save response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStripeWebhookSucceeded(t *testing.T) {
	ctrl, l := newControllerForTest(t, &controllerProvider{}, config.EnvDevelopment)
	body := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","amount":2500,"currency":"eur"}}}`
	req := httptest.NewRequest(http.MethodPost, "/stripe-webhook", bytes.NewBufferString(body))
	req.Header.Set(types.HeaderStripeSignature, provider.SignPayload([]byte(body), controllerWebhookSecret, time.Now()))
	rec := httptest.NewRecorder()

	_ = ctrl.StripeWebhook(echo.New().NewContext(req, rec))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload types.WebhookAckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil || !payload.Received {
		t.Fatalf("unexpected ack: %s", rec.Body.String())
	}

	entries := logEntries(t, l)
	if len(entries) != 1 || entries[0].Type != entity.EntryPaymentSucceeded || entries[0].String(entity.FieldPaymentIntentID) != "pi_1" {
		t.Fatalf("expected one payment_succeeded entry for pi_1, got %+v", entries)
	}
}

func TestStripeWebhookInvalidSignature(t *testing.T) {
	ctrl, l := newControllerForTest(t, &controllerProvider{}, config.EnvProduction)
	before, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}

	body := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/stripe-webhook", bytes.NewBufferString(body))
	req.Header.Set(types.HeaderStripeSignature, provider.SignPayload([]byte(body), "whsec_other", time.Now()))
	rec := httptest.NewRecorder()

	_ = ctrl.StripeWebhook(echo.New().NewContext(req, rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	after, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("expected log to be unchanged")
	}
}

func TestStripeWebhookMissingSignature(t *testing.T) {
	ctrl, _ := newControllerForTest(t, &controllerProvider{}, config.EnvDevelopment)
	req := httptest.NewRequest(http.MethodPost, "/stripe-webhook", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	_ = ctrl.StripeWebhook(echo.New().NewContext(req, rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleHTTPErrorRecordsServerError(t *testing.T) {
	ctrl, l := newControllerForTest(t, &controllerProvider{}, config.EnvProduction)
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/payment/pi_1", nil), rec)
	ctx.Response().Header().Set(echo.HeaderXRequestID, "req-9")

	ctrl.HandleHTTPError(errors.New("boom"), ctx)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var payload types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Error != internalErrorMessage || payload.Details != "" {
		t.Fatalf("unexpected production error payload: %+v", payload)
	}

	entries := logEntries(t, l)
	if len(entries) != 1 || entries[0].Type != entity.EntryServerError || entries[0].String(entity.FieldRequestID) != "req-9" {
		t.Fatalf("expected one server_error entry, got %+v", entries)
	}
}

func TestHandleHTTPErrorClientErrorsAreNotLogged(t *testing.T) {
	ctrl, l := newControllerForTest(t, &controllerProvider{}, config.EnvDevelopment)
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/nope", nil), rec)

	ctrl.HandleHTTPError(echo.ErrNotFound, ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if entries := logEntries(t, l); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
