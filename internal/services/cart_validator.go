package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrCartInvalidInput signals a malformed cart submission.
	ErrCartInvalidInput = errors.New("cart: invalid input")
)

// CartValidatorDeps bundles collaborators required to construct the validator.
type CartValidatorDeps struct {
	Catalog CatalogService
}

type cartValidator struct {
	catalog CatalogService
}

// NewCartValidator wires dependencies into a concrete CartValidator implementation.
func NewCartValidator(deps CartValidatorDeps) (CartValidator, error) {
	if deps.Catalog == nil {
		return nil, errors.New("cart validator: catalog service is required")
	}
	return &cartValidator{catalog: deps.Catalog}, nil
}

// Validate checks every line and resolves its product. A single bad line
// fails the whole cart before any order state is written.
func (v *cartValidator) Validate(ctx context.Context, lines []CartLineInput) ([]ValidatedLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart must contain at least one line", ErrCartInvalidInput)
	}

	validated := make([]ValidatedLine, 0, len(lines))
	for i, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: line %d is missing a product id", ErrCartInvalidInput, i)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive", ErrCartInvalidInput, i)
		}

		unitPrice, err := decimal.NewFromString(strings.TrimSpace(line.UnitPrice))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d unit price %q is not a number", ErrCartInvalidInput, i, line.UnitPrice)
		}
		if unitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: line %d unit price must not be negative", ErrCartInvalidInput, i)
		}

		product, err := v.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}

		validated = append(validated, ValidatedLine{
			Product:   product,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
		})
	}

	return validated, nil
}
