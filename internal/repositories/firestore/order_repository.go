package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/shopforge/api/internal/domain"
	pfirestore "github.com/shopforge/api/internal/platform/firestore"
	"github.com/shopforge/api/internal/repositories"
)

const (
	orderCollection        = "orders"
	orderDetailsSubPath   = "details"
	fieldOrderStatus       = "status"
	fieldOrderUpdatedAt    = "updatedAt"
	fieldOrderPartyID      = "partyId"
	fieldOrderCreatedAtKey = "createdAt"
)

// OrderRepository persists order aggregates in Firestore. The order header
// lives in the orders collection, line items in a details subcollection;
// both are written in a single transaction.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil),
		provider: provider,
	}, nil
}

// Create writes the order header and every detail atomically. Nothing is
// visible to readers unless all writes succeed.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}

	orderRef, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}

	doc := fromDomainOrder(order)

	return r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(orderRef, doc); err != nil {
			return err
		}
		for i, detail := range order.Details {
			if strings.TrimSpace(detail.ID) == "" {
				return fmt.Errorf("order detail %d is missing an id", i)
			}
			detailDoc := fromDomainDetail(detail, i)
			if err := tx.Create(orderRef.Collection(orderDetailsSubPath).Doc(detail.ID), detailDoc); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID loads the order header and its details in input order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := toDomainOrder(doc.ID, doc.Data)
	if err != nil {
		return domain.Order{}, err
	}
	order.LastSyncTime = doc.UpdateTime

	details, err := r.loadDetails(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Details = details
	return order, nil
}

// List returns order headers matching the filter, newest first. Details are
// not loaded for listings.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.PartyID != "" {
			q = q.Where(fieldOrderPartyID, "==", filter.PartyID)
		}
		if filter.Status != "" {
			q = q.Where(fieldOrderStatus, "==", string(filter.Status))
		}
		return q.OrderBy(fieldOrderCreatedAtKey, firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := toDomainOrder(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		order.LastSyncTime = doc.UpdateTime
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateStatus performs the check-and-set for a status transition. The
// lastSync timestamp read alongside the order acts as the optimistic
// concurrency token: a concurrent write aborts this one with a conflict.
// The returned order is composed from the transactional read plus the
// applied update, never from a separate re-read, so it reflects exactly
// the state this transition produced.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus, updatedAt time.Time, lastSync time.Time) (domain.Order, error) {
	orderRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		if !lastSync.IsZero() && !snap.UpdateTime.Equal(lastSync) {
			return status.Error(codes.Aborted, "order changed since it was read")
		}

		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}

		// Transactions require every read before the first write.
		details, err := collectDetails(tx.Documents(orderRef.Collection(orderDetailsSubPath)), orderID)
		if err != nil {
			return err
		}

		if err := tx.Update(orderRef, []firestore.Update{
			{Path: fieldOrderStatus, Value: string(newStatus)},
			{Path: fieldOrderUpdatedAt, Value: updatedAt},
		}); err != nil {
			return err
		}

		doc.Status = string(newStatus)
		doc.UpdatedAt = updatedAt
		order, err := toDomainOrder(orderID, doc)
		if err != nil {
			return err
		}
		order.Details = details
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// Delete removes the order header and all of its details in one transaction.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	orderRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}

	return r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(orderRef); err != nil {
			return err
		}

		iter := tx.Documents(orderRef.Collection(orderDetailsSubPath))
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			if err := tx.Delete(snap.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(orderRef)
	})
}

func (r *OrderRepository) loadDetails(ctx context.Context, orderID string) ([]domain.OrderDetail, error) {
	orderRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return collectDetails(orderRef.Collection(orderDetailsSubPath).Documents(ctx), orderID)
}

// collectDetails drains a detail iterator and restores input order from the
// stored positions. It serves both plain and transactional reads.
func collectDetails(iter *firestore.DocumentIterator, orderID string) ([]domain.OrderDetail, error) {
	defer iter.Stop()

	type positioned struct {
		position int
		detail   domain.OrderDetail
	}
	var rows []positioned
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.details.query", err)
		}
		var doc orderDetailDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode order detail %s: %w", snap.Ref.ID, err)
		}
		detail, err := toDomainDetail(snap.Ref.ID, orderID, doc)
		if err != nil {
			return nil, err
		}
		rows = append(rows, positioned{position: doc.Position, detail: detail})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].position < rows[j].position })

	details := make([]domain.OrderDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.detail)
	}
	return details, nil
}

type orderDocument struct {
	PartyID         string           `firestore:"partyId"`
	CustomerName    string           `firestore:"customerName"`
	Email           string           `firestore:"email"`
	Phone           string           `firestore:"phone,omitempty"`
	TotalAmount     string           `firestore:"totalAmount"`
	Status          string           `firestore:"status"`
	PaymentMethod   string           `firestore:"paymentMethod,omitempty"`
	ShippingAddress *addressDocument `firestore:"shippingAddress,omitempty"`
	BillingAddress  *addressDocument `firestore:"billingAddress,omitempty"`
	CreatedAt       time.Time        `firestore:"createdAt"`
	UpdatedAt       time.Time        `firestore:"updatedAt"`
}

type orderDetailDocument struct {
	ProductID   string `firestore:"productId"`
	ProductName string `firestore:"productName"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   string `firestore:"unitPrice"`
	LineTotal   string `firestore:"lineTotal"`
	Position    int    `firestore:"position"`
}

type addressDocument struct {
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	Region     string `firestore:"region,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	return orderDocument{
		PartyID:         order.PartyID,
		CustomerName:    order.CustomerName,
		Email:           order.Email,
		Phone:           order.Phone,
		TotalAmount:     order.TotalAmount.String(),
		Status:          string(order.Status),
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: fromDomainAddress(order.ShippingAddress),
		BillingAddress:  fromDomainAddress(order.BillingAddress),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func toDomainOrder(id string, doc orderDocument) (domain.Order, error) {
	total, err := decimal.NewFromString(doc.TotalAmount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s has malformed total %q: %w", id, doc.TotalAmount, err)
	}
	return domain.Order{
		ID:              id,
		PartyID:         doc.PartyID,
		CustomerName:    doc.CustomerName,
		Email:           doc.Email,
		Phone:           doc.Phone,
		TotalAmount:     total,
		Status:          domain.OrderStatus(doc.Status),
		PaymentMethod:   doc.PaymentMethod,
		ShippingAddress: toDomainAddress(doc.ShippingAddress),
		BillingAddress:  toDomainAddress(doc.BillingAddress),
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}

func fromDomainDetail(detail domain.OrderDetail, position int) orderDetailDocument {
	return orderDetailDocument{
		ProductID:   detail.ProductID,
		ProductName: detail.ProductName,
		Quantity:    detail.Quantity,
		UnitPrice:   detail.UnitPrice.String(),
		LineTotal:   detail.LineTotal.String(),
		Position:    position,
	}
}

func toDomainDetail(id, orderID string, doc orderDetailDocument) (domain.OrderDetail, error) {
	unitPrice, err := decimal.NewFromString(doc.UnitPrice)
	if err != nil {
		return domain.OrderDetail{}, fmt.Errorf("order detail %s has malformed unit price %q: %w", id, doc.UnitPrice, err)
	}
	lineTotal, err := decimal.NewFromString(doc.LineTotal)
	if err != nil {
		return domain.OrderDetail{}, fmt.Errorf("order detail %s has malformed line total %q: %w", id, doc.LineTotal, err)
	}
	return domain.OrderDetail{
		ID:          id,
		OrderID:     orderID,
		ProductID:   doc.ProductID,
		ProductName: doc.ProductName,
		Quantity:    doc.Quantity,
		UnitPrice:   unitPrice,
		LineTotal:   lineTotal,
	}, nil
}

func fromDomainAddress(addr *domain.Address) *addressDocument {
	if addr == nil {
		return nil
	}
	return &addressDocument{
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		Region:     addr.Region,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

func toDomainAddress(doc *addressDocument) *domain.Address {
	if doc == nil {
		return nil
	}
	return &domain.Address{
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		Region:     doc.Region,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
	}
}
