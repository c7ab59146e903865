package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
)

const DefaultSignatureTolerance = 300 * time.Second

// ErrSignature is matched by every verification failure.
var ErrSignature = errors.New("webhook signature rejected")

var (
	ErrMalformedHeader  = fmt.Errorf("%w: malformed signature header", ErrSignature)
	ErrInvalidSignature = fmt.Errorf("%w: signature mismatch", ErrSignature)
	ErrStaleTimestamp   = fmt.Errorf("%w: timestamp outside tolerance", ErrSignature)
	ErrMissingSecret    = fmt.Errorf("%w: webhook secret is not configured", ErrSignature)
	ErrMalformedPayload = fmt.Errorf("%w: payload is not a provider event", ErrSignature)
)

// VerifySignature checks a `t=<unix>,v1=<hex>` header against the raw request
// body. payload must be the exact bytes received, before any JSON decoding.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return ErrMissingSecret
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}

	ts, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	signedAt := time.Unix(ts, 0)
	drift := now.Sub(signedAt)
	if drift > tolerance || drift < -tolerance {
		return ErrStaleTimestamp
	}

	expected := computeSignature(payload, secret, ts)
	for _, sig := range candidates {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return nil
		}
	}

	return ErrInvalidSignature
}

// SignPayload builds a header that VerifySignature accepts for payload.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(computeSignature(payload, secret, ts)))
}

// ParseVerifiedEvent verifies payload and decodes the event envelope. No part
// of the body is decoded before the signature has been checked.
func ParseVerifiedEvent(payload []byte, header, secret string, tolerance time.Duration, now time.Time) (*entity.WebhookEvent, error) {
	if err := VerifySignature(payload, header, secret, tolerance, now); err != nil {
		return nil, err
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(string(event.Type)) == "" {
		return nil, ErrMalformedPayload
	}

	result := &entity.WebhookEvent{
		ID:   strings.TrimSpace(event.ID),
		Type: strings.TrimSpace(string(event.Type)),
	}
	if event.Data != nil {
		result.Raw = event.Data.Raw
		var object struct {
			ID string `json:"id"`
		}
		if len(event.Data.Raw) > 0 && json.Unmarshal(event.Data.Raw, &object) == nil {
			result.ObjectID = strings.TrimSpace(object.ID)
		}
	}

	return result, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, ErrMalformedHeader
	}

	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimSpace(strings.TrimPrefix(part, "v1=")))
		}
	}
	if ts == "" || len(v1) == 0 {
		return 0, nil, ErrMalformedHeader
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, nil, ErrMalformedHeader
	}
	return tsUnix, v1, nil
}

func computeSignature(payload []byte, secret string, ts int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}
