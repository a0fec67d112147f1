package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopforge/api/internal/domain"
	"github.com/shopforge/api/internal/services"
)

type stubPaymentService struct {
	recordFn       func(ctx context.Context, cmd services.RecordPaymentCommand) (domain.Payment, error)
	getFn          func(ctx context.Context, paymentID string) (domain.Payment, error)
	listFn         func(ctx context.Context, filter services.PaymentListFilter) ([]domain.Payment, error)
	updateFn       func(ctx context.Context, cmd services.PaymentStatusTransitionCommand) (domain.Payment, error)
	createIntentFn func(ctx context.Context, cmd services.CreateIntentCommand) (services.PaymentIntent, error)
}

func (s *stubPaymentService) RecordPayment(ctx context.Context, cmd services.RecordPaymentCommand) (domain.Payment, error) {
	if s.recordFn == nil {
		return domain.Payment{}, nil
	}
	return s.recordFn(ctx, cmd)
}

func (s *stubPaymentService) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	if s.getFn == nil {
		return domain.Payment{}, nil
	}
	return s.getFn(ctx, paymentID)
}

func (s *stubPaymentService) ListPayments(ctx context.Context, filter services.PaymentListFilter) ([]domain.Payment, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

func (s *stubPaymentService) UpdatePaymentStatus(ctx context.Context, cmd services.PaymentStatusTransitionCommand) (domain.Payment, error) {
	if s.updateFn == nil {
		return domain.Payment{}, nil
	}
	return s.updateFn(ctx, cmd)
}

func (s *stubPaymentService) CreateIntent(ctx context.Context, cmd services.CreateIntentCommand) (services.PaymentIntent, error) {
	if s.createIntentFn == nil {
		return services.PaymentIntent{}, nil
	}
	return s.createIntentFn(ctx, cmd)
}

func testPayment() domain.Payment {
	created := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	return domain.Payment{
		ID:            "pay_TEST01",
		OrderID:       "ord_TEST01",
		PaymentMethod: "card",
		Amount:        decimal.RequireFromString("54.98"),
		Status:        domain.PaymentStatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func newPaymentTestRouter(svc services.PaymentService) http.Handler {
	return NewRouter(WithPaymentHandlers(NewPaymentHandlers(svc)))
}

func TestPaymentHandlersRecord(t *testing.T) {
	var captured services.RecordPaymentCommand
	svc := &stubPaymentService{
		recordFn: func(ctx context.Context, cmd services.RecordPaymentCommand) (domain.Payment, error) {
			captured = cmd
			return testPayment(), nil
		},
	}
	router := newPaymentTestRouter(svc)

	body := `{"order_id": "ord_TEST01", "payment_method": "card", "amount": "54.98"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord_TEST01" || !captured.Amount.Equal(decimal.RequireFromString("54.98")) {
		t.Fatalf("unexpected command: %+v", captured)
	}
	var payload paymentPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ID != "pay_TEST01" || payload.Status != "PENDING" || payload.Amount != "54.98" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestPaymentHandlersRecordRejectsBadAmount(t *testing.T) {
	svc := &stubPaymentService{
		recordFn: func(ctx context.Context, cmd services.RecordPaymentCommand) (domain.Payment, error) {
			t.Fatal("service must not be called")
			return domain.Payment{}, nil
		},
	}
	router := newPaymentTestRouter(svc)

	body := `{"order_id": "ord_TEST01", "payment_method": "card", "amount": "fifty"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPaymentHandlersRecordMissingOrder(t *testing.T) {
	svc := &stubPaymentService{
		recordFn: func(ctx context.Context, cmd services.RecordPaymentCommand) (domain.Payment, error) {
			return domain.Payment{}, fmt.Errorf("%w: order %q", services.ErrPaymentNotFound, cmd.OrderID)
		},
	}
	router := newPaymentTestRouter(svc)

	body := `{"order_id": "ord_MISSING", "payment_method": "card", "amount": "10.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPaymentHandlersCreateIntent(t *testing.T) {
	var captured services.CreateIntentCommand
	svc := &stubPaymentService{
		createIntentFn: func(ctx context.Context, cmd services.CreateIntentCommand) (services.PaymentIntent, error) {
			captured = cmd
			return services.PaymentIntent{
				ProviderRef:      "pi_123",
				AmountMinorUnits: 5498,
				Currency:         "INR",
				Receipt:          "order_1709290800000",
			}, nil
		},
	}
	router := newPaymentTestRouter(svc)

	body := `{"amount": "54.98"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !captured.Amount.Equal(decimal.RequireFromString("54.98")) || captured.Currency != "" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	var payload paymentIntentPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ProviderRef != "pi_123" || payload.AmountMinorUnits != 5498 || payload.Currency != "INR" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestPaymentHandlersCreateIntentGatewayFailure(t *testing.T) {
	svc := &stubPaymentService{
		createIntentFn: func(ctx context.Context, cmd services.CreateIntentCommand) (services.PaymentIntent, error) {
			return services.PaymentIntent{}, fmt.Errorf("%w: create intent: timeout", services.ErrPaymentGateway)
		},
	}
	router := newPaymentTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(`{"amount": "54.98"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "payment_gateway_error" {
		t.Fatalf("expected payment_gateway_error code, got %v", payload["error"])
	}
}

func TestPaymentHandlersListForwardsFilter(t *testing.T) {
	var captured services.PaymentListFilter
	svc := &stubPaymentService{
		listFn: func(ctx context.Context, filter services.PaymentListFilter) ([]domain.Payment, error) {
			captured = filter
			return []domain.Payment{testPayment()}, nil
		},
	}
	router := newPaymentTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments?order_id=ord_TEST01&status=PENDING", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.OrderID != "ord_TEST01" || captured.Status != domain.PaymentStatusPending {
		t.Fatalf("unexpected filter: %+v", captured)
	}
}

func TestPaymentHandlersUpdateStatus(t *testing.T) {
	var captured services.PaymentStatusTransitionCommand
	svc := &stubPaymentService{
		updateFn: func(ctx context.Context, cmd services.PaymentStatusTransitionCommand) (domain.Payment, error) {
			captured = cmd
			payment := testPayment()
			payment.Status = domain.PaymentStatusCompleted
			payment.TransactionID = cmd.TransactionID
			return payment, nil
		},
	}
	router := newPaymentTestRouter(svc)

	body := `{"status": "COMPLETED", "transaction_id": "txn_42"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/payments/pay_TEST01/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.PaymentID != "pay_TEST01" || captured.TargetStatus != domain.PaymentStatusCompleted || captured.TransactionID != "txn_42" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	var payload paymentPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.TransactionID != "txn_42" {
		t.Fatalf("expected transaction id in payload, got %+v", payload)
	}
}

func TestPaymentHandlersUpdateStatusInvalidTransition(t *testing.T) {
	svc := &stubPaymentService{
		updateFn: func(ctx context.Context, cmd services.PaymentStatusTransitionCommand) (domain.Payment, error) {
			return domain.Payment{}, fmt.Errorf("%w: COMPLETED to FAILED", services.ErrPaymentInvalidState)
		},
	}
	router := newPaymentTestRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/payments/pay_TEST01/status", strings.NewReader(`{"status": "FAILED"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "invalid_transition" {
		t.Fatalf("expected invalid_transition code, got %v", payload["error"])
	}
}
