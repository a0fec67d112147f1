package services

import (
	"context"

	"github.com/shopspring/decimal"

	domain "github.com/shopforge/api/internal/domain"
	"github.com/shopforge/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Party           = domain.Party
	ProductSnapshot = domain.ProductSnapshot
	Address         = domain.Address
	Order           = domain.Order
	OrderDetail     = domain.OrderDetail
	OrderStatus     = domain.OrderStatus
	Payment         = domain.Payment
	PaymentStatus   = domain.PaymentStatus

	OrderListFilter   = repositories.OrderListFilter
	PaymentListFilter = repositories.PaymentListFilter
)

// ResolvePartyCommand identifies the purchasing party for an order. Exactly
// one resolution path applies: by id, by email, or guest creation.
type ResolvePartyCommand struct {
	PartyID     string
	Email       string
	DisplayName string
	Phone       string
}

// PartyResolver finds or creates the purchasing identity behind an order.
type PartyResolver interface {
	Resolve(ctx context.Context, cmd ResolvePartyCommand) (Party, error)
}

// CatalogService resolves product snapshots, serving cached entries when
// available.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (ProductSnapshot, error)
}

// CartLineInput is one requested line as submitted by the caller. UnitPrice
// arrives as text and is parsed during validation.
type CartLineInput struct {
	ProductID string
	Quantity  int
	UnitPrice string
}

// ValidatedLine pairs a resolved product with the requested quantity and the
// price the caller supplied.
type ValidatedLine struct {
	Product   ProductSnapshot
	Quantity  int
	UnitPrice decimal.Decimal
}

// CartValidator checks every submitted line against the catalog before any
// order state is written. Validation is all-or-nothing.
type CartValidator interface {
	Validate(ctx context.Context, lines []CartLineInput) ([]ValidatedLine, error)
}

// CreateOrderCommand carries everything needed to place an order.
type CreateOrderCommand struct {
	Party           ResolvePartyCommand
	Lines           []CartLineInput
	PaymentMethod   string
	ShippingAddress *Address
	BillingAddress  *Address
}

// OrderStatusTransitionCommand requests one state machine step.
type OrderStatusTransitionCommand struct {
	OrderID      string
	TargetStatus OrderStatus
}

// OrderService encapsulates the order read/write flows.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// RecordPaymentCommand registers a new payment attempt against an order.
type RecordPaymentCommand struct {
	OrderID       string
	PaymentMethod string
	Amount        decimal.Decimal
}

// PaymentStatusTransitionCommand settles or fails a pending payment.
// TransactionID is only applied when completing.
type PaymentStatusTransitionCommand struct {
	PaymentID     string
	TargetStatus  PaymentStatus
	TransactionID string
}

// CreateIntentCommand opens a payment intent with the external gateway.
// Currency falls back to the configured default when empty.
type CreateIntentCommand struct {
	Amount   decimal.Decimal
	Currency string
}

// PaymentIntent is the gateway-side handle returned to the client. No local
// payment record exists for it yet.
type PaymentIntent struct {
	ProviderRef      string
	AmountMinorUnits int64
	Currency         string
	Receipt          string
}

// PaymentService maintains the payment ledger and brokers gateway intents.
type PaymentService interface {
	RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (Payment, error)
	GetPayment(ctx context.Context, paymentID string) (Payment, error)
	ListPayments(ctx context.Context, filter PaymentListFilter) ([]Payment, error)
	UpdatePaymentStatus(ctx context.Context, cmd PaymentStatusTransitionCommand) (Payment, error)
	CreateIntent(ctx context.Context, cmd CreateIntentCommand) (PaymentIntent, error)
}
