package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-intents/app/factory"
	"github.com/vibast-solutions/ms-go-payment-intents/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-intents/app/service"
	"github.com/vibast-solutions/ms-go-payment-intents/app/types"
	"github.com/vibast-solutions/ms-go-payment-intents/config"
)

const internalErrorMessage = "internal server error"

type PaymentController struct {
	paymentService *service.PaymentService
	appCfg         config.AppConfig
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService, appCfg config.AppConfig) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		appCfg:         appCfg,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{
		Status:             "ok",
		ProviderConfigured: c.paymentService.ProviderConfigured(),
		Environment:        c.appCfg.Environment,
	})
}

func (c *PaymentController) Config(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.ConfigResponse{PublishableKey: c.paymentService.PublishableKey()})
}

func (c *PaymentController) CreatePaymentIntent(ctx echo.Context) error {
	req, err := types.NewCreatePaymentIntentRequestFromContext(ctx)
	if err != nil {
		if errors.Is(err, types.ErrInvalidAmount) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
		}
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	result, err := c.paymentService.CreatePaymentIntent(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create payment intent failed")
		return c.writeError(ctx, http.StatusInternalServerError, "payment intent could not be created", err)
	}

	return ctx.JSON(http.StatusOK, mapper.CreatePaymentIntentResultToResponse(result))
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request", nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	intent, err := c.paymentService.GetPaymentIntent(ctx.Request().Context(), req.GetId())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found", nil)
		case errors.Is(err, service.ErrValidation):
			return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, internalErrorMessage, err)
		}
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentIntentToView(intent))
}

func (c *PaymentController) CreateSetupIntent(ctx echo.Context) error {
	req, err := types.NewCreateSetupIntentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	intent, err := c.paymentService.CreateSetupIntent(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create setup intent failed")
		return c.writeError(ctx, http.StatusInternalServerError, internalErrorMessage, err)
	}

	return ctx.JSON(http.StatusOK, &types.ClientSecretResponse{ClientSecret: intent.ClientSecret})
}

func (c *PaymentController) SavePaymentMethod(ctx echo.Context) error {
	req, err := types.NewSavePaymentMethodRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	if err := c.paymentService.SavePaymentMethod(ctx.Request().Context(), req); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment method or customer not found", nil)
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Save payment method failed")
			return c.writeError(ctx, http.StatusInternalServerError, internalErrorMessage, err)
		}
	}

	return ctx.JSON(http.StatusOK, &types.SuccessResponse{Success: true})
}

func (c *PaymentController) StripeWebhook(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	if _, err := c.paymentService.HandleWebhook(ctx.Request().Context(), req); err != nil {
		if errors.Is(err, service.ErrSignatureRejected) {
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("Webhook rejected")
			return c.writeError(ctx, http.StatusBadRequest, "webhook signature verification failed", err)
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle webhook failed")
		return c.writeError(ctx, http.StatusInternalServerError, internalErrorMessage, err)
	}

	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Received: true})
}

// writeError attaches the underlying cause as details outside production.
func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string, cause error) error {
	resp := &types.ErrorResponse{Error: message}
	if cause != nil && !c.appCfg.IsProduction() {
		resp.Details = cause.Error()
	}
	return ctx.JSON(statusCode, resp)
}
