package domain

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrInvalidProduct means the requested product edition is not in the
// catalog's closed set.
var ErrInvalidProduct = errors.New("unknown product version")

// Product editions sold through this system.
const (
	ProductPersonalAdvanced    = "LINGMA_PERSONAL_ADVANCED"
	ProductExclusive           = "LINGMA_EXCLUSIVE"
	ProductEnterpriseStandard  = "LINGMA_ENTERPRISE_STANDARD"
	ProductEnterpriseExclusive = "LINGMA_ENTERPRISE_EXCLUSIVE"
)

// Catalog maps product editions to per-license unit prices. It is built
// once at startup and passed by reference; the price table is never a
// mutable global.
type Catalog struct {
	prices map[string]decimal.Decimal
}

// DefaultCatalog returns the standard price list.
func DefaultCatalog() *Catalog {
	return NewCatalog(map[string]decimal.Decimal{
		ProductPersonalAdvanced:    decimal.RequireFromString("79.00"),
		ProductExclusive:           decimal.RequireFromString("159.00"),
		ProductEnterpriseStandard:  decimal.RequireFromString("499.00"),
		ProductEnterpriseExclusive: decimal.RequireFromString("999.00"),
	})
}

// NewCatalog copies the given price table so callers cannot mutate the
// catalog after construction.
func NewCatalog(prices map[string]decimal.Decimal) *Catalog {
	cp := make(map[string]decimal.Decimal, len(prices))
	for product, price := range prices {
		cp[product] = price
	}
	return &Catalog{prices: cp}
}

// UnitPrice returns the per-license price of a product edition.
func (c *Catalog) UnitPrice(product string) (decimal.Decimal, error) {
	price, ok := c.prices[product]
	if !ok {
		return decimal.Decimal{}, ErrInvalidProduct
	}
	return price, nil
}

// Total computes unitPrice(product) * count, exact to two decimal
// places. Totals are always derived here; amounts submitted alongside
// price-affecting fields are never trusted.
func (c *Catalog) Total(product string, count int) (decimal.Decimal, error) {
	if count <= 0 {
		return decimal.Decimal{}, &ValidationError{Field: "purchasedLicCount", Reason: "must be positive"}
	}
	price, err := c.UnitPrice(product)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return price.Mul(decimal.NewFromInt(int64(count))).Round(2), nil
}

// Products lists the catalog's editions in stable order.
func (c *Catalog) Products() []string {
	out := make([]string, 0, len(c.prices))
	for product := range c.prices {
		out = append(out, product)
	}
	sort.Strings(out)
	return out
}
