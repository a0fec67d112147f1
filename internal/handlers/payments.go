package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/shopforge/api/internal/domain"
	"github.com/shopforge/api/internal/platform/httpx"
	"github.com/shopforge/api/internal/services"
)

const maxPaymentBodySize = 8 * 1024

// PaymentHandlers exposes the payment ledger and gateway intent endpoints.
type PaymentHandlers struct {
	payments services.PaymentService
}

// NewPaymentHandlers constructs payment handlers backed by the given service.
func NewPaymentHandlers(payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{payments: payments}
}

// Routes registers the payment endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	r.Post("/", h.record)
	r.Post("/intent", h.createIntent)
	r.Get("/", h.list)
	r.Get("/{paymentID}", h.get)
	r.Put("/{paymentID}/status", h.updateStatus)
}

type recordPaymentRequest struct {
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	Amount        string `json:"amount"`
}

type paymentStatusRequest struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type createIntentRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

type paymentPayload struct {
	ID            string `json:"id"`
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

type paymentListPayload struct {
	Payments []paymentPayload `json:"payments"`
}

type paymentIntentPayload struct {
	ProviderRef      string `json:"provider_ref"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
	Receipt          string `json:"receipt"`
}

func (h *PaymentHandlers) record(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := decodeRequest(r, maxPaymentBodySize, &req); err != nil {
		writePaymentError(w, r, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writePaymentError(w, r, err)
		return
	}

	payment, err := h.payments.RecordPayment(r.Context(), services.RecordPaymentCommand{
		OrderID:       req.OrderID,
		PaymentMethod: req.PaymentMethod,
		Amount:        amount,
	})
	if err != nil {
		writePaymentError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildPaymentPayload(payment))
}

func (h *PaymentHandlers) createIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeRequest(r, maxPaymentBodySize, &req); err != nil {
		writePaymentError(w, r, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writePaymentError(w, r, err)
		return
	}

	intent, err := h.payments.CreateIntent(r.Context(), services.CreateIntentCommand{
		Amount:   amount,
		Currency: req.Currency,
	})
	if err != nil {
		writePaymentError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, paymentIntentPayload{
		ProviderRef:      intent.ProviderRef,
		AmountMinorUnits: intent.AmountMinorUnits,
		Currency:         intent.Currency,
		Receipt:          intent.Receipt,
	})
}

func (h *PaymentHandlers) get(w http.ResponseWriter, r *http.Request) {
	payment, err := h.payments.GetPayment(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		writePaymentError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPaymentPayload(payment))
}

func (h *PaymentHandlers) list(w http.ResponseWriter, r *http.Request) {
	filter := services.PaymentListFilter{
		OrderID: r.URL.Query().Get("order_id"),
		Status:  domain.PaymentStatus(r.URL.Query().Get("status")),
	}
	payments, err := h.payments.ListPayments(r.Context(), filter)
	if err != nil {
		writePaymentError(w, r, err)
		return
	}
	payload := paymentListPayload{Payments: make([]paymentPayload, 0, len(payments))}
	for _, payment := range payments {
		payload.Payments = append(payload.Payments, buildPaymentPayload(payment))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PaymentHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if err := decodeRequest(r, maxPaymentBodySize, &req); err != nil {
		writePaymentError(w, r, err)
		return
	}

	payment, err := h.payments.UpdatePaymentStatus(r.Context(), services.PaymentStatusTransitionCommand{
		PaymentID:     chi.URLParam(r, "paymentID"),
		TargetStatus:  domain.PaymentStatus(req.Status),
		TransactionID: req.TransactionID,
	})
	if err != nil {
		writePaymentError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPaymentPayload(payment))
}

func buildPaymentPayload(payment domain.Payment) paymentPayload {
	return paymentPayload{
		ID:            payment.ID,
		OrderID:       payment.OrderID,
		PaymentMethod: payment.PaymentMethod,
		Amount:        payment.Amount.StringFixed(2),
		Status:        string(payment.Status),
		TransactionID: payment.TransactionID,
		CreatedAt:     formatTime(payment.CreatedAt),
		UpdatedAt:     formatTime(payment.UpdatedAt),
	}
}

var errInvalidAmount = errors.New("amount must be a decimal number")

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, errInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errInvalidAmount
	}
	return amount, nil
}

func writePaymentError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, errEmptyBody), errors.Is(err, errBodyTooLarge),
		errors.Is(err, errUnknownField), errors.Is(err, errMalformedBody),
		errors.Is(err, errInvalidAmount):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentGateway):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", err.Error(), http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
