package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTotalExactPerProduct(t *testing.T) {
	catalog := DefaultCatalog()
	cases := []struct {
		product string
		count   int
		want    string
	}{
		{ProductExclusive, 1, "159.00"},
		{ProductExclusive, 2, "318.00"},
		{ProductExclusive, 10, "1590.00"},
		{ProductPersonalAdvanced, 3, "237.00"},
		{ProductEnterpriseStandard, 7, "3493.00"},
		{ProductEnterpriseExclusive, 100, "99900.00"},
	}
	for _, tc := range cases {
		got, err := catalog.Total(tc.product, tc.count)
		if err != nil {
			t.Fatalf("Total(%s, %d): %v", tc.product, tc.count, err)
		}
		want := decimal.RequireFromString(tc.want)
		if !got.Equal(want) {
			t.Errorf("Total(%s, %d) = %s, want %s", tc.product, tc.count, got, want)
		}
	}
}

func TestTotalMatchesUnitPriceTimesCount(t *testing.T) {
	catalog := DefaultCatalog()
	for _, product := range catalog.Products() {
		unit, err := catalog.UnitPrice(product)
		if err != nil {
			t.Fatalf("UnitPrice(%s): %v", product, err)
		}
		for _, count := range []int{1, 2, 17, 1000} {
			got, err := catalog.Total(product, count)
			if err != nil {
				t.Fatalf("Total(%s, %d): %v", product, count, err)
			}
			want := unit.Mul(decimal.NewFromInt(int64(count)))
			if !got.Equal(want) {
				t.Errorf("Total(%s, %d) = %s, want %s", product, count, got, want)
			}
		}
	}
}

func TestTotalRejectsUnknownProduct(t *testing.T) {
	_, err := DefaultCatalog().Total("LINGMA_ULTIMATE", 1)
	if !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("err = %v, want ErrInvalidProduct", err)
	}
}

func TestTotalRejectsNonPositiveCount(t *testing.T) {
	catalog := DefaultCatalog()
	for _, count := range []int{0, -1} {
		_, err := catalog.Total(ProductExclusive, count)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Total(count=%d) err = %v, want ValidationError", count, err)
		}
	}
}

func TestCatalogCopiesPriceTable(t *testing.T) {
	prices := map[string]decimal.Decimal{"X": decimal.RequireFromString("1.00")}
	catalog := NewCatalog(prices)
	prices["X"] = decimal.RequireFromString("9.99")

	unit, err := catalog.UnitPrice("X")
	if err != nil {
		t.Fatalf("UnitPrice: %v", err)
	}
	if !unit.Equal(decimal.RequireFromString("1.00")) {
		t.Fatalf("catalog mutated through caller map: %s", unit)
	}
}
