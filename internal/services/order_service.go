package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/shopforge/api/internal/domain"
	"github.com/shopforge/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix  = "ord_"
	detailIDPrefix = "itm_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
)

// Same-state requests are not listed, so they fail like any other illegal
// transition. DELIVERED and CANCELLED have no successors.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered:  {},
	domain.OrderStatusCancelled:  {},
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId,omitempty"`
	PartyID        string    `json:"partyId,omitempty"`
	PaymentID      string    `json:"paymentId,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Status         string    `json:"status,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Resolver    PartyResolver
	Validator   CartValidator
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	resolver  PartyResolver
	validator CartValidator
	clock     func() time.Time
	newID     func() string
	events    OrderEventPublisher
	logger    func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("order service: party resolver is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("order service: cart validator is required")
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

	return &orderService{
		orders:    deps.Orders,
		resolver:  deps.Resolver,
		validator: deps.Validator,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// Create validates the cart, resolves the party, and writes the order
// aggregate in one transaction. The returned order is composed from the
// inputs, not re-read from storage.
func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if strings.TrimSpace(cmd.PaymentMethod) == "" {
		return Order{}, fmt.Errorf("%w: payment method is required", ErrOrderInvalidInput)
	}

	lines, err := s.validator.Validate(ctx, cmd.Lines)
	if err != nil {
		return Order{}, s.mapValidationError(err)
	}

	party, err := s.resolver.Resolve(ctx, cmd.Party)
	if err != nil {
		return Order{}, s.mapResolutionError(err)
	}

	now := s.now()
	order := Order{
		ID:              orderIDPrefix + s.newID(),
		PartyID:         party.ID,
		CustomerName:    coalesce(strings.TrimSpace(cmd.Party.DisplayName), party.DisplayName),
		Email:           party.Email,
		Phone:           coalesce(strings.TrimSpace(cmd.Party.Phone), party.Phone),
		Status:          domain.OrderStatusPending,
		PaymentMethod:   strings.TrimSpace(cmd.PaymentMethod),
		ShippingAddress: cloneAddress(cmd.ShippingAddress),
		BillingAddress:  cloneAddress(cmd.BillingAddress),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	details := make([]domain.OrderDetail, 0, len(lines))
	totals := make([]decimal.Decimal, 0, len(lines))
	for _, line := range lines {
		lineTotal := domain.LineTotal(line.UnitPrice, line.Quantity)
		details = append(details, domain.OrderDetail{
			ID:          detailIDPrefix + s.newID(),
			OrderID:     order.ID,
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   lineTotal,
		})
		totals = append(totals, lineTotal)
	}
	order.Details = details
	order.TotalAmount = domain.SumLineTotals(totals)

	if err := s.orders.Create(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventCreated,
		OrderID:    order.ID,
		PartyID:    order.PartyID,
		Status:     string(order.Status),
		OccurredAt: now,
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error) {
	if filter.Status != "" && !isOrderStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, filter.Status)
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

// TransitionStatus applies one state machine step. The write carries the
// read's sync token so a concurrent update surfaces as a conflict instead of
// a lost update.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !isOrderStatus(cmd.TargetStatus) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !canTransitionOrder(order.Status, cmd.TargetStatus) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, cmd.TargetStatus)
	}

	now := s.now()
	updated, err := s.orders.UpdateStatus(ctx, orderID, cmd.TargetStatus, now, order.LastSyncTime)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		PartyID:        updated.PartyID,
		PreviousStatus: string(order.Status),
		Status:         string(updated.Status),
		OccurredAt:     now,
	})

	return updated, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if err := s.orders.Delete(ctx, orderID); err != nil {
		return s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventDeleted,
		OrderID:    orderID,
		OccurredAt: s.now(),
	})

	return nil
}

func (s *orderService) mapValidationError(err error) error {
	switch {
	case errors.Is(err, ErrCartInvalidInput), errors.Is(err, ErrCatalogInvalidInput):
		return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	case errors.Is(err, ErrProductNotFound):
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	}
	return err
}

func (s *orderService) mapResolutionError(err error) error {
	switch {
	case errors.Is(err, ErrPartyInvalidInput):
		return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	case errors.Is(err, ErrPartyNotFound):
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	case errors.Is(err, ErrPartyConflict):
		return fmt.Errorf("%w: %v", ErrOrderConflict, err)
	}
	return err
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func canTransitionOrder(current, target domain.OrderStatus) bool {
	return slices.Contains(orderStateTransitions[current], target)
}

func isOrderStatus(status domain.OrderStatus) bool {
	_, ok := orderStateTransitions[status]
	return ok
}

func cloneAddress(addr *Address) *Address {
	if addr == nil {
		return nil
	}
	copied := *addr
	return &copied
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
