package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe gateway operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGatewayConfig configures the StripeGateway.
type StripeGatewayConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time

	// Intents overrides the Stripe client, used by tests.
	Intents stripePaymentIntentAPI
}

// StripeGateway implements the Gateway interface using Stripe Payment Intents.
type StripeGateway struct {
	intents stripePaymentIntentAPI
	account string
	clock   func() time.Time
	logger  StripeLogger
}

// NewStripeGateway constructs a Stripe Gateway using the given configuration.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}

	intents := cfg.Intents
	if intents == nil {
		sc := client.New(apiKey, cfg.Backends)
		intents = sc.PaymentIntents
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeGateway{
		intents: intents,
		account: strings.TrimSpace(cfg.AccountID),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateIntent opens a Payment Intent with Stripe for the requested amount.
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if g == nil {
		return Intent{}, errors.New("stripe: gateway is nil")
	}
	if req.Amount <= 0 {
		return Intent{}, errors.New("stripe: amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return Intent{}, errors.New("stripe: currency is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	if receipt := strings.TrimSpace(req.Receipt); receipt != "" {
		params.Description = stripe.String(receipt)
	}

	intent, err := g.intents.New(params)
	if err != nil {
		return Intent{}, gatewayError("create payment intent", err)
	}

	g.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
		"currency":      intent.Currency,
	})

	createdAt := g.clock()
	if intent.Created != 0 {
		createdAt = time.Unix(intent.Created, 0).UTC()
	}

	return Intent{
		ProviderRef:  intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		Receipt:      req.Receipt,
		Status:       stripeIntentStatus(intent.Status),
		CreatedAt:    createdAt,
	}, nil
}

func stripeIntentStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}
