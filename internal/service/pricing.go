package service

import (
	"context"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/shipping"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Catalog is the product-read capability consumed by pricing.
type Catalog interface {
	GetProducts(ctx context.Context, productIDs []int64) (map[int64]*models.Product, error)
}

// ShippingQuoter produces a shipping quote for an address and order total.
type ShippingQuoter interface {
	Calculate(addr models.Address, orderTotal float64) (*shipping.Quote, error)
	ValidateAddress(addr models.Address) error
}

// LineItem is a cart line submitted by the client. Only product id, variant
// and quantity are taken from it; prices always come from the catalog.
type LineItem struct {
	ProductID int64  `json:"product_id" binding:"required"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// PriceBreakdown is the authoritative server-side pricing of an order.
type PriceBreakdown struct {
	Subtotal       float64                   `json:"subtotal"`
	TaxAmount      float64                   `json:"tax_amount"`
	ShippingAmount float64                   `json:"shipping_amount"`
	DiscountAmount float64                   `json:"discount_amount"`
	Total          float64                   `json:"total"`
	Quote          *shipping.Quote           `json:"shipping_quote"`
	Products       map[int64]*models.Product `json:"-"`
}

// PricingEngine re-derives order totals from current catalog state. Client
// supplied prices and totals are never trusted.
type PricingEngine struct {
	catalog  Catalog
	shipping ShippingQuoter
	taxRate  float64
	logger   *zap.Logger
}

func NewPricingEngine(catalog Catalog, quoter ShippingQuoter, taxRate float64) *PricingEngine {
	return &PricingEngine{
		catalog:  catalog,
		shipping: quoter,
		taxRate:  taxRate,
		logger:   util.GetLogger(),
	}
}

// Price computes subtotal, tax, shipping and total for the given line items
// shipped to the given address. A missing product aborts the whole pricing:
// no partial orders.
func (e *PricingEngine) Price(ctx context.Context, items []LineItem, shipTo models.Address, discount float64) (*PriceBreakdown, error) {
	ctx, span := util.StartSpan(ctx, "PricingEngine.Price")
	defer span.End()

	if len(items) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "order must contain at least one item")
	}

	productIDs := make([]int64, len(items))
	for i, item := range items {
		if item.Quantity < 1 {
			return nil, apperr.Newf(apperr.CodeValidation, "quantity must be at least 1 for product %d", item.ProductID)
		}
		productIDs[i] = item.ProductID
	}

	products, err := e.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	var subtotal float64
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, apperr.Newf(apperr.CodeNotFound, "product not found: %d", item.ProductID)
		}
		subtotal += product.Price * float64(item.Quantity)
	}
	subtotal = models.Round2(subtotal)

	tax := models.Round2(subtotal * e.taxRate)

	quote, err := e.shipping.Calculate(shipTo, subtotal)
	if err != nil {
		return nil, err
	}

	if discount < 0 {
		return nil, apperr.New(apperr.CodeValidation, "discount must not be negative")
	}

	breakdown := &PriceBreakdown{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingAmount: quote.ShippingCost,
		DiscountAmount: models.Round2(discount),
		Total:          models.Round2(subtotal + tax + quote.ShippingCost - discount),
		Quote:          quote,
		Products:       products,
	}

	e.logger.Debug("Order priced",
		zap.Float64("subtotal", breakdown.Subtotal),
		zap.Float64("tax", breakdown.TaxAmount),
		zap.Float64("shipping", breakdown.ShippingAmount),
		zap.Float64("total", breakdown.Total))

	return breakdown, nil
}
