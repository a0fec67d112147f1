package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopforge/api/internal/domain"
	"github.com/shopforge/api/internal/platform/httpx"
	"github.com/shopforge/api/internal/services"
)

const (
	maxCreateOrderBodySize = 64 * 1024
	maxOrderStatusBodySize = 4 * 1024
)

// OrderHandlers exposes order placement and lifecycle endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs order handlers backed by the given service.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the order endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{orderID}", h.get)
	r.Put("/{orderID}/status", h.updateStatus)
	r.Delete("/{orderID}", h.delete)
}

type customerRequest struct {
	PartyID string `json:"party_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
}

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type createOrderRequest struct {
	Customer        customerRequest    `json:"customer"`
	Items           []orderLineRequest `json:"items"`
	PaymentMethod   string             `json:"payment_method"`
	ShippingAddress *addressPayload    `json:"shipping_address"`
	BillingAddress  *addressPayload    `json:"billing_address"`
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

type orderDetailPayload struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

type orderPayload struct {
	ID              string               `json:"id"`
	PartyID         string               `json:"party_id"`
	CustomerName    string               `json:"customer_name,omitempty"`
	Email           string               `json:"email,omitempty"`
	Phone           string               `json:"phone,omitempty"`
	Status          string               `json:"status"`
	PaymentMethod   string               `json:"payment_method"`
	TotalAmount     string               `json:"total_amount"`
	ShippingAddress *addressPayload      `json:"shipping_address,omitempty"`
	BillingAddress  *addressPayload      `json:"billing_address,omitempty"`
	Items           []orderDetailPayload `json:"items"`
	CreatedAt       string               `json:"created_at,omitempty"`
	UpdatedAt       string               `json:"updated_at,omitempty"`
}

type orderListPayload struct {
	Orders []orderPayload `json:"orders"`
}

func (h *OrderHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeRequest(r, maxCreateOrderBodySize, &req); err != nil {
		writeOrderError(w, r, err)
		return
	}

	lines := make([]services.CartLineInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, services.CartLineInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	order, err := h.orders.Create(r.Context(), services.CreateOrderCommand{
		Party: services.ResolvePartyCommand{
			PartyID:     req.Customer.PartyID,
			Email:       req.Customer.Email,
			DisplayName: req.Customer.Name,
			Phone:       req.Customer.Phone,
		},
		Lines:           lines,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: addressFromPayload(req.ShippingAddress),
		BillingAddress:  addressFromPayload(req.BillingAddress),
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	filter := services.OrderListFilter{
		PartyID: r.URL.Query().Get("party_id"),
		Status:  domain.OrderStatus(r.URL.Query().Get("status")),
	}
	orders, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	payload := orderListPayload{Orders: make([]orderPayload, 0, len(orders))}
	for _, order := range orders {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusRequest
	if err := decodeRequest(r, maxOrderStatusBodySize, &req); err != nil {
		writeOrderError(w, r, err)
		return
	}

	order, err := h.orders.TransitionStatus(r.Context(), services.OrderStatusTransitionCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: domain.OrderStatus(req.Status),
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		writeOrderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderDetailPayload, 0, len(order.Details))
	for _, detail := range order.Details {
		items = append(items, orderDetailPayload{
			ID:          detail.ID,
			ProductID:   detail.ProductID,
			ProductName: detail.ProductName,
			Quantity:    detail.Quantity,
			UnitPrice:   detail.UnitPrice.StringFixed(2),
			LineTotal:   detail.LineTotal.StringFixed(2),
		})
	}
	return orderPayload{
		ID:              order.ID,
		PartyID:         order.PartyID,
		CustomerName:    order.CustomerName,
		Email:           order.Email,
		Phone:           order.Phone,
		Status:          string(order.Status),
		PaymentMethod:   order.PaymentMethod,
		TotalAmount:     order.TotalAmount.StringFixed(2),
		ShippingAddress: addressToPayload(order.ShippingAddress),
		BillingAddress:  addressToPayload(order.BillingAddress),
		Items:           items,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
}

func addressFromPayload(p *addressPayload) *domain.Address {
	if p == nil {
		return nil
	}
	return &domain.Address{
		Line1:      p.Line1,
		Line2:      p.Line2,
		City:       p.City,
		Region:     p.Region,
		PostalCode: p.PostalCode,
		Country:    p.Country,
	}
}

func addressToPayload(a *domain.Address) *addressPayload {
	if a == nil {
		return nil
	}
	return &addressPayload{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, errEmptyBody), errors.Is(err, errBodyTooLarge),
		errors.Is(err, errUnknownField), errors.Is(err, errMalformedBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
