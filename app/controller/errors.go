package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-payment-intents/app/factory"
	"github.com/vibast-solutions/ms-go-payment-intents/app/types"
)

// HandleHTTPError is the echo error handler. Server errors are written to the
// transaction log before the response is sent.
func (c *PaymentController) HandleHTTPError(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := internalErrorMessage
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if code < http.StatusInternalServerError {
			message = fmt.Sprint(httpErr.Message)
		}
		if httpErr.Internal != nil {
			err = httpErr.Internal
		}
	}

	if code >= http.StatusInternalServerError {
		requestID := ctx.Response().Header().Get(echo.HeaderXRequestID)
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Unhandled request error")
		c.paymentService.RecordServerError(ctx.Request().Context(), requestID, ctx.Request().URL.Path, err)
	}

	var writeErr error
	if ctx.Request().Method == http.MethodHead {
		writeErr = ctx.NoContent(code)
	} else if code >= http.StatusInternalServerError {
		writeErr = c.writeError(ctx, code, message, err)
	} else {
		writeErr = ctx.JSON(code, &types.ErrorResponse{Error: message})
	}
	if writeErr != nil {
		c.logger.WithError(writeErr).Warn("Failed to write error response")
	}
}
