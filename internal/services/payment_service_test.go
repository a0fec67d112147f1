package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/shopforge/api/internal/domain"
	"github.com/shopforge/api/internal/payments"
	pfirestore "github.com/shopforge/api/internal/platform/firestore"
	"github.com/shopforge/api/internal/repositories"
)

type stubPaymentRepository struct {
	insertFn       func(context.Context, domain.Payment) error
	findByIDFn     func(context.Context, string) (domain.Payment, error)
	listFn         func(context.Context, repositories.PaymentListFilter) ([]domain.Payment, error)
	updateStatusFn func(context.Context, string, domain.PaymentStatus, string, time.Time, time.Time) (domain.Payment, error)
	insertCalls    []domain.Payment
}

func (s *stubPaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	s.insertCalls = append(s.insertCalls, payment)
	if s.insertFn != nil {
		return s.insertFn(ctx, payment)
	}
	return nil
}

func (s *stubPaymentRepository) FindByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, paymentID)
	}
	return domain.Payment{}, pfirestore.NotFoundError("payments.get", errors.New("missing"))
}

func (s *stubPaymentRepository) List(ctx context.Context, filter repositories.PaymentListFilter) ([]domain.Payment, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubPaymentRepository) UpdateStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, transactionID string, updatedAt time.Time, lastSync time.Time) (domain.Payment, error) {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, paymentID, status, transactionID, updatedAt, lastSync)
	}
	return domain.Payment{}, pfirestore.NotFoundError("payments.get", errors.New("missing"))
}

type stubGateway struct {
	createFn func(context.Context, payments.IntentRequest) (payments.Intent, error)
	lastReq  payments.IntentRequest
	calls    int
}

func (s *stubGateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
	s.calls++
	s.lastReq = req
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return payments.Intent{ProviderRef: "pi_1", Amount: req.Amount, Currency: req.Currency}, nil
}

func ordersWith(order domain.Order) *stubOrderRepository {
	return &stubOrderRepository{
		findByIDFn: func(_ context.Context, orderID string) (domain.Order, error) {
			if orderID == order.ID {
				return order, nil
			}
			return domain.Order{}, pfirestore.NotFoundError("orders.get", errors.New("missing"))
		},
	}
}

func newTestPaymentService(t *testing.T, deps PaymentServiceDeps) PaymentService {
	t.Helper()
	if deps.Payments == nil {
		deps.Payments = &stubPaymentRepository{}
	}
	if deps.Orders == nil {
		deps.Orders = ordersWith(domain.Order{ID: "ord_1", Status: domain.OrderStatusPending})
	}
	svc, err := NewPaymentService(deps)
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}
	return svc
}

func TestPaymentServiceRecordPayment(t *testing.T) {
	now := time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC)
	repo := &stubPaymentRepository{}
	publisher := &stubPublisher{}
	svc := newTestPaymentService(t, PaymentServiceDeps{
		Payments:    repo,
		Clock:       fixedClock(now),
		IDGenerator: func() string { return "PAY01" },
		Events:      publisher,
	})

	payment, err := svc.RecordPayment(context.Background(), RecordPaymentCommand{
		OrderID:       "ord_1",
		PaymentMethod: "card",
		Amount:        decimal.RequireFromString("25.005"),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if payment.ID != "pay_PAY01" {
		t.Fatalf("expected generated id, got %q", payment.ID)
	}
	if payment.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", payment.Status)
	}
	if !payment.Amount.Equal(decimal.RequireFromString("25.01")) {
		t.Fatalf("expected rounded amount 25.01, got %s", payment.Amount)
	}
	if len(repo.insertCalls) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.insertCalls))
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != paymentEventRecorded {
		t.Fatalf("expected payment.recorded event, got %#v", publisher.events)
	}
}

func TestPaymentServiceRecordPaymentMissingOrder(t *testing.T) {
	repo := &stubPaymentRepository{}
	svc := newTestPaymentService(t, PaymentServiceDeps{Payments: repo})

	_, err := svc.RecordPayment(context.Background(), RecordPaymentCommand{
		OrderID:       "ord_missing",
		PaymentMethod: "card",
		Amount:        decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(repo.insertCalls) != 0 {
		t.Fatalf("expected no insert, got %d", len(repo.insertCalls))
	}
}

func TestPaymentServiceRecordPaymentValidation(t *testing.T) {
	svc := newTestPaymentService(t, PaymentServiceDeps{})

	cases := []struct {
		name string
		cmd  RecordPaymentCommand
	}{
		{"missing order id", RecordPaymentCommand{PaymentMethod: "card", Amount: decimal.NewFromInt(1)}},
		{"missing method", RecordPaymentCommand{OrderID: "ord_1", Amount: decimal.NewFromInt(1)}},
		{"zero amount", RecordPaymentCommand{OrderID: "ord_1", PaymentMethod: "card"}},
		{"negative amount", RecordPaymentCommand{OrderID: "ord_1", PaymentMethod: "card", Amount: decimal.NewFromInt(-5)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordPayment(context.Background(), tc.cmd); !errors.Is(err, ErrPaymentInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestPaymentServiceUpdateStatusCompletes(t *testing.T) {
	readTime := time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC)
	stored := domain.Payment{ID: "pay_1", OrderID: "ord_1", Status: domain.PaymentStatusPending, LastSyncTime: readTime}

	var gotTransaction string
	var gotLastSync time.Time
	repo := &stubPaymentRepository{
		findByIDFn: func(context.Context, string) (domain.Payment, error) {
			return stored, nil
		},
		updateStatusFn: func(_ context.Context, _ string, status domain.PaymentStatus, transactionID string, updatedAt time.Time, lastSync time.Time) (domain.Payment, error) {
			gotTransaction = transactionID
			gotLastSync = lastSync
			updated := stored
			updated.Status = status
			updated.TransactionID = transactionID
			updated.UpdatedAt = updatedAt
			return updated, nil
		},
	}
	publisher := &stubPublisher{}
	svc := newTestPaymentService(t, PaymentServiceDeps{Payments: repo, Events: publisher})

	payment, err := svc.UpdatePaymentStatus(context.Background(), PaymentStatusTransitionCommand{
		PaymentID:     "pay_1",
		TargetStatus:  domain.PaymentStatusCompleted,
		TransactionID: "txn_42",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if payment.Status != domain.PaymentStatusCompleted || payment.TransactionID != "txn_42" {
		t.Fatalf("unexpected payment %#v", payment)
	}
	if gotTransaction != "txn_42" {
		t.Fatalf("expected transaction id forwarded, got %q", gotTransaction)
	}
	if !gotLastSync.Equal(readTime) {
		t.Fatalf("expected precondition token %v, got %v", readTime, gotLastSync)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != paymentEventStatusChanged {
		t.Fatalf("expected payment.status.changed event, got %#v", publisher.events)
	}
}

func TestPaymentServiceUpdateStatusRules(t *testing.T) {
	cases := []struct {
		name    string
		current domain.PaymentStatus
		target  domain.PaymentStatus
		wantErr error
	}{
		{"pending to completed", domain.PaymentStatusPending, domain.PaymentStatusCompleted, nil},
		{"pending to failed", domain.PaymentStatusPending, domain.PaymentStatusFailed, nil},
		{"completed is terminal", domain.PaymentStatusCompleted, domain.PaymentStatusFailed, ErrPaymentInvalidState},
		{"failed is terminal", domain.PaymentStatusFailed, domain.PaymentStatusCompleted, ErrPaymentInvalidState},
		{"same state rejected", domain.PaymentStatusPending, domain.PaymentStatusPending, ErrPaymentInvalidState},
		{"unknown status", domain.PaymentStatusPending, domain.PaymentStatus("BOGUS"), ErrPaymentInvalidInput},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubPaymentRepository{
				findByIDFn: func(context.Context, string) (domain.Payment, error) {
					return domain.Payment{ID: "pay_1", Status: tc.current}, nil
				},
				updateStatusFn: func(_ context.Context, _ string, status domain.PaymentStatus, transactionID string, updatedAt time.Time, _ time.Time) (domain.Payment, error) {
					return domain.Payment{ID: "pay_1", Status: status, TransactionID: transactionID, UpdatedAt: updatedAt}, nil
				},
			}
			svc := newTestPaymentService(t, PaymentServiceDeps{Payments: repo})

			_, err := svc.UpdatePaymentStatus(context.Background(), PaymentStatusTransitionCommand{
				PaymentID:    "pay_1",
				TargetStatus: tc.target,
			})
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestPaymentServiceUpdateStatusDropsTransactionOnFailure(t *testing.T) {
	var gotTransaction string
	repo := &stubPaymentRepository{
		findByIDFn: func(context.Context, string) (domain.Payment, error) {
			return domain.Payment{ID: "pay_1", Status: domain.PaymentStatusPending}, nil
		},
		updateStatusFn: func(_ context.Context, _ string, status domain.PaymentStatus, transactionID string, updatedAt time.Time, _ time.Time) (domain.Payment, error) {
			gotTransaction = transactionID
			return domain.Payment{ID: "pay_1", Status: status, UpdatedAt: updatedAt}, nil
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Payments: repo})

	_, err := svc.UpdatePaymentStatus(context.Background(), PaymentStatusTransitionCommand{
		PaymentID:     "pay_1",
		TargetStatus:  domain.PaymentStatusFailed,
		TransactionID: "txn_ignored",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if gotTransaction != "" {
		t.Fatalf("transaction id must not be stored on failure, got %q", gotTransaction)
	}
}

func TestPaymentServiceListValidatesStatusFilter(t *testing.T) {
	svc := newTestPaymentService(t, PaymentServiceDeps{})

	_, err := svc.ListPayments(context.Background(), PaymentListFilter{Status: domain.PaymentStatus("BOGUS")})
	if !errors.Is(err, ErrPaymentInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestPaymentServiceCreateIntent(t *testing.T) {
	now := time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC)
	gateway := &stubGateway{}
	svc := newTestPaymentService(t, PaymentServiceDeps{
		Gateway:         gateway,
		GatewayTimeout:  2 * time.Second,
		DefaultCurrency: "inr",
		Clock:           fixedClock(now),
	})

	intent, err := svc.CreateIntent(context.Background(), CreateIntentCommand{
		Amount: decimal.RequireFromString("54.98"),
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if intent.AmountMinorUnits != 5498 {
		t.Fatalf("expected 5498 minor units, got %d", intent.AmountMinorUnits)
	}
	if intent.Currency != "INR" {
		t.Fatalf("expected default currency INR, got %q", intent.Currency)
	}
	if !strings.HasPrefix(intent.Receipt, "order_") {
		t.Fatalf("expected receipt prefix, got %q", intent.Receipt)
	}
	if gateway.lastReq.Amount != 5498 {
		t.Fatalf("expected minor units forwarded to gateway, got %d", gateway.lastReq.Amount)
	}
	if gateway.lastReq.IdempotencyKey != intent.Receipt {
		t.Fatalf("expected idempotency key %q, got %q", intent.Receipt, gateway.lastReq.IdempotencyKey)
	}
}

func TestPaymentServiceCreateIntentAppliesTimeout(t *testing.T) {
	gateway := &stubGateway{
		createFn: func(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Fatal("expected deadline on gateway context")
			}
			return payments.Intent{ProviderRef: "pi_1", Amount: req.Amount}, nil
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Gateway: gateway, DefaultCurrency: "INR"})

	if _, err := svc.CreateIntent(context.Background(), CreateIntentCommand{Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("create intent: %v", err)
	}
}

func TestPaymentServiceCreateIntentGatewayFailure(t *testing.T) {
	repo := &stubPaymentRepository{}
	gateway := &stubGateway{
		createFn: func(context.Context, payments.IntentRequest) (payments.Intent, error) {
			return payments.Intent{}, payments.ErrGateway
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Payments: repo, Gateway: gateway, DefaultCurrency: "INR"})

	_, err := svc.CreateIntent(context.Background(), CreateIntentCommand{Amount: decimal.NewFromInt(10)})
	if !errors.Is(err, ErrPaymentGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if len(repo.insertCalls) != 0 {
		t.Fatalf("gateway failure must not write locally, got %d inserts", len(repo.insertCalls))
	}
}

func TestPaymentServiceCreateIntentValidation(t *testing.T) {
	svc := newTestPaymentService(t, PaymentServiceDeps{Gateway: &stubGateway{}, DefaultCurrency: "INR"})

	if _, err := svc.CreateIntent(context.Background(), CreateIntentCommand{}); !errors.Is(err, ErrPaymentInvalidInput) {
		t.Fatalf("expected invalid input for zero amount, got %v", err)
	}
}
