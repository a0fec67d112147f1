package firestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	domain "github.com/shopforge/api/internal/domain"
	pfirestore "github.com/shopforge/api/internal/platform/firestore"
)

const productCollection = "products"

// ProductRepository reads catalog products for cart validation.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil),
	}, nil
}

// LookupProduct fetches a single product snapshot by ID.
func (r *ProductRepository) LookupProduct(ctx context.Context, productID string) (domain.ProductSnapshot, error) {
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.ProductSnapshot{}, err
	}
	price, err := decimal.NewFromString(doc.Data.Price)
	if err != nil {
		return domain.ProductSnapshot{}, fmt.Errorf("product %s has malformed price %q: %w", doc.ID, doc.Data.Price, err)
	}
	return domain.ProductSnapshot{
		ID:    doc.ID,
		Name:  doc.Data.Name,
		Price: price,
	}, nil
}

type productDocument struct {
	Name  string `firestore:"name"`
	Price string `firestore:"price"`
}
