package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order has been placed and awaits handling.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusShipped indicates the order has been handed to a carrier.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered indicates the order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled indicates the order was cancelled before shipping. Terminal.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// PaymentStatus enumerates valid lifecycle states for payments.
type PaymentStatus string

const (
	// PaymentStatusPending indicates the payment attempt is recorded but not settled.
	PaymentStatusPending PaymentStatus = "PENDING"
	// PaymentStatusCompleted indicates the payment settled successfully. Terminal.
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	// PaymentStatusFailed indicates the payment attempt failed. Terminal.
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// Party is the purchasing identity behind an order, registered or guest.
// The order core never mutates an existing party.
type Party struct {
	ID          string
	Email       string
	DisplayName string
	Phone       string
	// Credential holds the opaque marker assigned to guest parties. Markers
	// are recognisably non-authenticatable and never usable for login.
	Credential string
	CreatedAt  time.Time
}

// ProductSnapshot is the slice of catalog state the order core consumes.
type ProductSnapshot struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Address captures a postal address snapshot stored on the order.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Order is the aggregate root for a purchase. TotalAmount is computed once
// at creation and never recomputed; Status changes only through the state
// machine.
type Order struct {
	ID              string
	PartyID         string
	CustomerName    string
	Email           string
	Phone           string
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	PaymentMethod   string
	ShippingAddress *Address
	BillingAddress  *Address
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// LastSyncTime carries the storage update timestamp used for optimistic
	// concurrency on status writes. Zero means no precondition.
	LastSyncTime time.Time
	Details      []OrderDetail
}

// OrderDetail is one line item owned by exactly one order. Details are
// created only as part of the order aggregate and never re-parented.
type OrderDetail struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Payment records one payment attempt against an order. Amount is
// independent of the order total; partial and overlapping payments are
// representable and not reconciled here.
type Payment struct {
	ID            string
	OrderID       string
	PaymentMethod string
	Amount        decimal.Decimal
	Status        PaymentStatus
	TransactionID string
	ProviderRef   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastSyncTime  time.Time
}
