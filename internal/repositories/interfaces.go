package repositories

import (
	"context"
	"time"

	domain "github.com/shopforge/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// PartyRepository stores purchasing identities. CreateParty must reserve the
// party's email atomically: a second create with the same email fails with a
// conflict instead of producing a duplicate identity.
type PartyRepository interface {
	FindByID(ctx context.Context, partyID string) (domain.Party, error)
	FindByEmail(ctx context.Context, email string) (domain.Party, error)
	CreateParty(ctx context.Context, party domain.Party) error
}

// ProductRepository resolves catalog products for cart validation. The order
// core only reads; catalog writes happen elsewhere and must evict the product
// cache for the written id.
type ProductRepository interface {
	LookupProduct(ctx context.Context, productID string) (domain.ProductSnapshot, error)
}

// OrderListFilter narrows order listings. Zero values mean no filtering.
type OrderListFilter struct {
	PartyID string
	Status  domain.OrderStatus
}

// OrderRepository persists order aggregates.
//
// Create writes the order header and every detail in one transaction; a
// failing detail write aborts the whole aggregate. UpdateStatus enforces the
// optimistic precondition carried in lastSync and fails with a conflict when
// the stored order changed since it was read.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time, lastSync time.Time) (domain.Order, error)
	Delete(ctx context.Context, orderID string) error
}

// PaymentListFilter narrows payment listings. Zero values mean no filtering.
type PaymentListFilter struct {
	OrderID string
	Status  domain.PaymentStatus
}

// PaymentRepository stores payment attempts against orders.
type PaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	FindByID(ctx context.Context, paymentID string) (domain.Payment, error)
	List(ctx context.Context, filter PaymentListFilter) ([]domain.Payment, error)
	UpdateStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, transactionID string, updatedAt time.Time, lastSync time.Time) (domain.Payment, error)
}
