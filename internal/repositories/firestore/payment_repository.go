package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/shopforge/api/internal/domain"
	pfirestore "github.com/shopforge/api/internal/platform/firestore"
	"github.com/shopforge/api/internal/repositories"
)

const (
	paymentCollection        = "payments"
	fieldPaymentStatus       = "status"
	fieldPaymentUpdatedAt    = "updatedAt"
	fieldPaymentOrderID      = "orderId"
	fieldPaymentTransaction  = "transactionId"
	fieldPaymentCreatedAtKey = "createdAt"
)

// PaymentRepository persists payment attempts in a top-level collection so
// the ledger can query across orders.
type PaymentRepository struct {
	base     *pfirestore.BaseRepository[paymentDocument]
	provider *pfirestore.Provider
}

// NewPaymentRepository constructs a Firestore-backed payment repository.
func NewPaymentRepository(provider *pfirestore.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	return &PaymentRepository{
		base:     pfirestore.NewBaseRepository[paymentDocument](provider, paymentCollection, nil),
		provider: provider,
	}, nil
}

// Insert writes a new payment record.
func (r *PaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	if strings.TrimSpace(payment.ID) == "" {
		return errors.New("payment id is required")
	}
	_, err := r.base.Create(ctx, payment.ID, fromDomainPayment(payment))
	return err
}

// FindByID loads a payment by its identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	doc, err := r.base.Get(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	return toDomainPayment(doc.ID, doc.Data, doc.UpdateTime)
}

// List returns payments matching the filter, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter repositories.PaymentListFilter) ([]domain.Payment, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.OrderID != "" {
			q = q.Where(fieldPaymentOrderID, "==", filter.OrderID)
		}
		if filter.Status != "" {
			q = q.Where(fieldPaymentStatus, "==", string(filter.Status))
		}
		return q.OrderBy(fieldPaymentCreatedAtKey, firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	payments := make([]domain.Payment, 0, len(docs))
	for _, doc := range docs {
		payment, err := toDomainPayment(doc.ID, doc.Data, doc.UpdateTime)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

// UpdateStatus performs the check-and-set for a payment transition using the
// same optimistic update-time token as order status writes. The returned
// payment is composed from the transactional read plus the applied update,
// never from a separate re-read.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, paymentID string, newStatus domain.PaymentStatus, transactionID string, updatedAt time.Time, lastSync time.Time) (domain.Payment, error) {
	paymentRef, err := r.base.DocumentRef(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	var updated domain.Payment
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(paymentRef)
		if err != nil {
			return err
		}
		if !lastSync.IsZero() && !snap.UpdateTime.Equal(lastSync) {
			return status.Error(codes.Aborted, "payment changed since it was read")
		}

		var doc paymentDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode payment %s: %w", paymentID, err)
		}

		updates := []firestore.Update{
			{Path: fieldPaymentStatus, Value: string(newStatus)},
			{Path: fieldPaymentUpdatedAt, Value: updatedAt},
		}
		if transactionID != "" {
			updates = append(updates, firestore.Update{Path: fieldPaymentTransaction, Value: transactionID})
		}
		if err := tx.Update(paymentRef, updates); err != nil {
			return err
		}

		doc.Status = string(newStatus)
		doc.UpdatedAt = updatedAt
		if transactionID != "" {
			doc.TransactionID = transactionID
		}
		payment, err := toDomainPayment(paymentID, doc, time.Time{})
		if err != nil {
			return err
		}
		updated = payment
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return updated, nil
}

type paymentDocument struct {
	OrderID       string    `firestore:"orderId"`
	PaymentMethod string    `firestore:"paymentMethod"`
	Amount        string    `firestore:"amount"`
	Status        string    `firestore:"status"`
	TransactionID string    `firestore:"transactionId,omitempty"`
	ProviderRef   string    `firestore:"providerRef,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func fromDomainPayment(payment domain.Payment) paymentDocument {
	return paymentDocument{
		OrderID:       payment.OrderID,
		PaymentMethod: payment.PaymentMethod,
		Amount:        payment.Amount.String(),
		Status:        string(payment.Status),
		TransactionID: payment.TransactionID,
		ProviderRef:   payment.ProviderRef,
		CreatedAt:     payment.CreatedAt,
		UpdatedAt:     payment.UpdatedAt,
	}
}

func toDomainPayment(id string, doc paymentDocument, updateTime time.Time) (domain.Payment, error) {
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("payment %s has malformed amount %q: %w", id, doc.Amount, err)
	}
	return domain.Payment{
		ID:            id,
		OrderID:       doc.OrderID,
		PaymentMethod: doc.PaymentMethod,
		Amount:        amount,
		Status:        domain.PaymentStatus(doc.Status),
		TransactionID: doc.TransactionID,
		ProviderRef:   doc.ProviderRef,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		LastSyncTime:  updateTime,
	}, nil
}
