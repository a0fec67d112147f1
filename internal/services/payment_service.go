package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/shopforge/api/internal/domain"
	"github.com/shopforge/api/internal/payments"
	"github.com/shopforge/api/internal/repositories"
)

const (
	paymentEventRecorded      = "payment.recorded"
	paymentEventStatusChanged = "payment.status.changed"

	paymentIDPrefix = "pay_"

	defaultGatewayTimeout = 10 * time.Second
)

var (
	// ErrPaymentInvalidInput signals the caller provided invalid data.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentNotFound indicates the payment or its order could not be located.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrPaymentInvalidState indicates an invalid status transition was attempted.
	ErrPaymentInvalidState = errors.New("payment: invalid status transition")
	// ErrPaymentConflict indicates optimistic concurrency conflicts.
	ErrPaymentConflict = errors.New("payment: conflict")
	// ErrPaymentGateway indicates the external gateway failed or timed out.
	ErrPaymentGateway = errors.New("payment: gateway error")
)

// COMPLETED and FAILED are terminal. Same-state requests fail like any other
// illegal transition.
var paymentStateTransitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentStatusPending:   {domain.PaymentStatusCompleted, domain.PaymentStatusFailed},
	domain.PaymentStatusCompleted: {},
	domain.PaymentStatusFailed:    {},
}

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Payments repositories.PaymentRepository
	Orders   repositories.OrderRepository
	Gateway  payments.Gateway
	// GatewayTimeout bounds every outbound gateway call.
	GatewayTimeout time.Duration
	// DefaultCurrency is applied to intents that do not name a currency.
	DefaultCurrency string
	Clock           func() time.Time
	IDGenerator     func() string
	Events          OrderEventPublisher
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	payments        repositories.PaymentRepository
	orders          repositories.OrderRepository
	gateway         payments.Gateway
	gatewayTimeout  time.Duration
	defaultCurrency string
	clock           func() time.Time
	newID           func() string
	events          OrderEventPublisher
	logger          func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}

	timeout := deps.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		payments:        deps.Payments,
		orders:          deps.Orders,
		gateway:         deps.Gateway,
		gatewayTimeout:  timeout,
		defaultCurrency: strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency)),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// RecordPayment registers a pending payment attempt. The amount is stored as
// given; it is never reconciled against the order total.
func (s *paymentService) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (Payment, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Payment{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	method := strings.TrimSpace(cmd.PaymentMethod)
	if method == "" {
		return Payment{}, fmt.Errorf("%w: payment method is required", ErrPaymentInvalidInput)
	}
	if !cmd.Amount.IsPositive() {
		return Payment{}, fmt.Errorf("%w: amount must be positive", ErrPaymentInvalidInput)
	}

	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}

	now := s.now()
	payment := Payment{
		ID:            paymentIDPrefix + s.newID(),
		OrderID:       orderID,
		PaymentMethod: method,
		Amount:        domain.RoundMoney(cmd.Amount),
		Status:        domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.payments.Insert(ctx, payment); err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       paymentEventRecorded,
		OrderID:    payment.OrderID,
		PaymentID:  payment.ID,
		Status:     string(payment.Status),
		OccurredAt: now,
	})

	return payment, nil
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return Payment{}, fmt.Errorf("%w: payment id is required", ErrPaymentInvalidInput)
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}
	return payment, nil
}

func (s *paymentService) ListPayments(ctx context.Context, filter PaymentListFilter) ([]Payment, error) {
	if filter.Status != "" && !isPaymentStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrPaymentInvalidInput, filter.Status)
	}

	results, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return results, nil
}

// UpdatePaymentStatus settles or fails a pending payment. The write carries
// the read's sync token so a concurrent update surfaces as a conflict.
func (s *paymentService) UpdatePaymentStatus(ctx context.Context, cmd PaymentStatusTransitionCommand) (Payment, error) {
	paymentID := strings.TrimSpace(cmd.PaymentID)
	if paymentID == "" {
		return Payment{}, fmt.Errorf("%w: payment id is required", ErrPaymentInvalidInput)
	}
	if !isPaymentStatus(cmd.TargetStatus) {
		return Payment{}, fmt.Errorf("%w: unknown status %q", ErrPaymentInvalidInput, cmd.TargetStatus)
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}

	if !canTransitionPayment(payment.Status, cmd.TargetStatus) {
		return Payment{}, fmt.Errorf("%w: %s to %s", ErrPaymentInvalidState, payment.Status, cmd.TargetStatus)
	}

	transactionID := ""
	if cmd.TargetStatus == domain.PaymentStatusCompleted {
		transactionID = strings.TrimSpace(cmd.TransactionID)
	}

	now := s.now()
	updated, err := s.payments.UpdateStatus(ctx, paymentID, cmd.TargetStatus, transactionID, now, payment.LastSyncTime)
	if err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           paymentEventStatusChanged,
		OrderID:        updated.OrderID,
		PaymentID:      updated.ID,
		PreviousStatus: string(payment.Status),
		Status:         string(updated.Status),
		OccurredAt:     now,
	})

	return updated, nil
}

// CreateIntent opens a gateway intent under the configured timeout. Nothing
// is written locally; a late gateway response is discarded with the context.
func (s *paymentService) CreateIntent(ctx context.Context, cmd CreateIntentCommand) (PaymentIntent, error) {
	if s.gateway == nil {
		return PaymentIntent{}, fmt.Errorf("%w: no gateway configured", ErrPaymentGateway)
	}
	if !cmd.Amount.IsPositive() {
		return PaymentIntent{}, fmt.Errorf("%w: amount must be positive", ErrPaymentInvalidInput)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if currency == "" {
		return PaymentIntent{}, fmt.Errorf("%w: currency is required", ErrPaymentInvalidInput)
	}

	now := s.now()
	receipt := fmt.Sprintf("order_%d", now.UnixMilli())

	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	intent, err := s.gateway.CreateIntent(callCtx, payments.IntentRequest{
		Amount:         domain.MinorUnits(cmd.Amount),
		Currency:       currency,
		Receipt:        receipt,
		IdempotencyKey: receipt,
	})
	if err != nil {
		s.logger(ctx, "payment.intent.failed", map[string]any{
			"currency": currency,
			"error":    err.Error(),
		})
		return PaymentIntent{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	return PaymentIntent{
		ProviderRef:      intent.ProviderRef,
		AmountMinorUnits: intent.Amount,
		Currency:         currency,
		Receipt:          receipt,
	}, nil
}

func (s *paymentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrPaymentConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("payment: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *paymentService) now() time.Time {
	return s.clock()
}

func (s *paymentService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "payment.event.publish.failed", map[string]any{
			"type":    event.Type,
			"payment": event.PaymentID,
			"error":   err.Error(),
		})
	}
}

func canTransitionPayment(current, target domain.PaymentStatus) bool {
	return slices.Contains(paymentStateTransitions[current], target)
}

func isPaymentStatus(status domain.PaymentStatus) bool {
	_, ok := paymentStateTransitions[status]
	return ok
}
