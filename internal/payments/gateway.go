package payments

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrGateway wraps any failure reported by the payment service provider so
// callers can distinguish gateway faults from local validation errors.
var ErrGateway = errors.New("payments: gateway error")

// IntentRequest captures the payload required to open a payment intent with
// the PSP. Amount is expressed in the currency's minor units. IdempotencyKey
// makes retried calls safe against double-charging.
type IntentRequest struct {
	Amount         int64
	Currency       string
	Receipt        string
	IdempotencyKey string
}

// Intent is the PSP-side handle returned for a newly created intent.
type Intent struct {
	ProviderRef  string
	ClientSecret string
	Amount       int64
	Currency     string
	Receipt      string
	Status       Status
	CreatedAt    time.Time
}

// Status enumerates the normalised intent states shared across providers.
type Status string

const (
	// StatusPending indicates the intent is awaiting customer action or PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP reports the intent as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the PSP reports a failure and no further action is possible.
	StatusFailed Status = "failed"
)

// Gateway defines the contract for PSP adapters to implement.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}

func gatewayError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrGateway, op, err)
}
