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

type stubOrderService struct {
	createFn     func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error)
	getFn        func(ctx context.Context, orderID string) (domain.Order, error)
	listFn       func(ctx context.Context, filter services.OrderListFilter) ([]domain.Order, error)
	transitionFn func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error)
	deleteFn     func(ctx context.Context, orderID string) error
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	if s.createFn == nil {
		return domain.Order{}, nil
	}
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if s.getFn == nil {
		return domain.Order{}, nil
	}
	return s.getFn(ctx, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) ([]domain.Order, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error) {
	if s.transitionFn == nil {
		return domain.Order{}, nil
	}
	return s.transitionFn(ctx, cmd)
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, orderID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, orderID)
}

func testOrder() domain.Order {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:            "ord_TEST01",
		PartyID:       "prt_TEST01",
		CustomerName:  "Asha Rao",
		Email:         "asha@example.com",
		Status:        domain.OrderStatusPending,
		PaymentMethod: "card",
		TotalAmount:   decimal.RequireFromString("54.98"),
		CreatedAt:     created,
		UpdatedAt:     created,
		Details: []domain.OrderDetail{
			{
				ID:          "itm_TEST01",
				OrderID:     "ord_TEST01",
				ProductID:   "prd_1",
				ProductName: "Mug",
				Quantity:    2,
				UnitPrice:   decimal.RequireFromString("12.50"),
				LineTotal:   decimal.RequireFromString("25.00"),
			},
		},
	}
}

func newOrderTestRouter(svc services.OrderService) http.Handler {
	return NewRouter(WithOrderHandlers(NewOrderHandlers(svc)))
}

func TestOrderHandlersCreate(t *testing.T) {
	var captured services.CreateOrderCommand
	svc := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
			captured = cmd
			return testOrder(), nil
		},
	}
	router := newOrderTestRouter(svc)

	body := `{
		"customer": {"email": "asha@example.com", "name": "Asha Rao"},
		"items": [{"product_id": "prd_1", "quantity": 2, "unit_price": "12.50"}],
		"payment_method": "card",
		"shipping_address": {"line1": "1 MG Road", "city": "Bengaluru", "postal_code": "560001", "country": "IN"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Party.Email != "asha@example.com" {
		t.Fatalf("expected party email forwarded, got %q", captured.Party.Email)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].UnitPrice != "12.50" {
		t.Fatalf("unexpected lines: %+v", captured.Lines)
	}
	if captured.ShippingAddress == nil || captured.ShippingAddress.City != "Bengaluru" {
		t.Fatalf("expected shipping address forwarded, got %+v", captured.ShippingAddress)
	}

	var payload orderPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ID != "ord_TEST01" || payload.TotalAmount != "54.98" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(payload.Items) != 1 || payload.Items[0].LineTotal != "25.00" {
		t.Fatalf("unexpected items: %+v", payload.Items)
	}
}

func TestOrderHandlersCreateRejectsUnknownFields(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
			t.Fatal("service must not be called")
			return domain.Order{}, nil
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"surprise": true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "invalid_request" {
		t.Fatalf("expected invalid_request code, got %v", payload["error"])
	}
}

func TestOrderHandlersCreateEmptyBody(t *testing.T) {
	router := newOrderTestRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader("  "))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrderHandlersGetNotFound(t *testing.T) {
	svc := &stubOrderService{
		getFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: order %q", services.ErrOrderNotFound, orderID)
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_MISSING", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "not_found" {
		t.Fatalf("expected not_found code, got %v", payload["error"])
	}
}

func TestOrderHandlersListForwardsFilter(t *testing.T) {
	var captured services.OrderListFilter
	svc := &stubOrderService{
		listFn: func(ctx context.Context, filter services.OrderListFilter) ([]domain.Order, error) {
			captured = filter
			return []domain.Order{testOrder()}, nil
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?party_id=prt_TEST01&status=PENDING", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.PartyID != "prt_TEST01" || captured.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected filter: %+v", captured)
	}
	var payload orderListPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Orders) != 1 {
		t.Fatalf("expected one order, got %d", len(payload.Orders))
	}
}

func TestOrderHandlersUpdateStatus(t *testing.T) {
	var captured services.OrderStatusTransitionCommand
	svc := &stubOrderService{
		transitionFn: func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error) {
			captured = cmd
			order := testOrder()
			order.Status = domain.OrderStatusProcessing
			return order, nil
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord_TEST01/status", strings.NewReader(`{"status": "PROCESSING"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord_TEST01" || captured.TargetStatus != domain.OrderStatusProcessing {
		t.Fatalf("unexpected command: %+v", captured)
	}
}

func TestOrderHandlersUpdateStatusErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid transition", fmt.Errorf("%w: DELIVERED to PENDING", services.ErrOrderInvalidState), http.StatusConflict, "invalid_transition"},
		{"stale write", fmt.Errorf("%w: changed since read", services.ErrOrderConflict), http.StatusConflict, "conflict"},
		{"unknown status", fmt.Errorf("%w: unknown status", services.ErrOrderInvalidInput), http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{
				transitionFn: func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error) {
					return domain.Order{}, tc.err
				},
			}
			router := newOrderTestRouter(svc)

			req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord_TEST01/status", strings.NewReader(`{"status": "PROCESSING"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			var payload map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error payload: %v", err)
			}
			if payload["error"] != tc.wantCode {
				t.Fatalf("expected code %q, got %v", tc.wantCode, payload["error"])
			}
		})
	}
}

func TestOrderHandlersDelete(t *testing.T) {
	var deleted string
	svc := &stubOrderService{
		deleteFn: func(ctx context.Context, orderID string) error {
			deleted = orderID
			return nil
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/orders/ord_TEST01", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if deleted != "ord_TEST01" {
		t.Fatalf("expected delete forwarded, got %q", deleted)
	}
}
