// Package domain holds the order entity, its status schemas, the pricing
// catalog and the audit annotation rules. Everything here is pure: the
// store facade and transport live elsewhere.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a commercial order for a product edition. Description doubles
// as the embedded audit log: annotations are appended one per line and
// existing content is never rewritten.
type Order struct {
	Cid               string          `json:"cid"`
	CustomerName      string          `json:"customerName"`
	ProductVersion    string          `json:"productVersion"`
	DevScale          int             `json:"devScale"`
	PurchasedLicCount int             `json:"purchasedLicCount"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Status            int             `json:"status"`
	Description       string          `json:"description"`
	CreateTime        time.Time       `json:"createTime"`
	PayTime           *time.Time      `json:"payTime,omitempty"`
	UpdateTime        *time.Time      `json:"updateTime,omitempty"`

	// Version is the optimistic-lock counter maintained by the store;
	// zero means the order has never been persisted.
	Version int64 `json:"version"`
}

// ValidationError reports a field constraint violation. The transport
// layer owns the user-facing message; core code only carries the facts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// Validate checks field constraints common to create and update. Product
// membership is the catalog's concern and is checked during pricing.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.Cid) == "" {
		return &ValidationError{Field: "cid", Reason: "required"}
	}
	if strings.TrimSpace(o.CustomerName) == "" {
		return &ValidationError{Field: "customerName", Reason: "required"}
	}
	if o.DevScale <= 0 {
		return &ValidationError{Field: "devScale", Reason: "must be positive"}
	}
	if o.PurchasedLicCount <= 0 {
		return &ValidationError{Field: "purchasedLicCount", Reason: "must be positive"}
	}
	return nil
}

// MarkPaid records the payment instant on first entry into the paid
// state. The timestamp is write-once: later transitions never touch it.
func (o *Order) MarkPaid(now time.Time) {
	if o.PayTime != nil {
		return
	}
	t := now.UTC()
	o.PayTime = &t
}
