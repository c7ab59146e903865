package service

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrSignatureRejected   = errors.New("webhook signature rejected")
	ErrProvider            = errors.New("payment provider error")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrMirrorNotConfigured = errors.New("log mirror is not configured")
)
