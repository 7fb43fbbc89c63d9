package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/nazeru/crm-orders-go/internal/lifecycle"
)

func TestSubscriptionSchemaEdges(t *testing.T) {
	s := SubscriptionSchema()

	rule, err := s.Step(StatusPresale, StatusOrdered)
	if err != nil {
		t.Fatalf("presale -> ordered: %v", err)
	}
	if rule.SideEffect != lifecycle.EffectSetPayTime {
		t.Errorf("place_order side effect = %q", rule.SideEffect)
	}
	if _, err := s.Step(StatusOrdered, StatusExpansion); err != nil {
		t.Errorf("ordered -> expansion: %v", err)
	}
	if _, err := s.Step(StatusExpansion, StatusChurned); err != nil {
		t.Errorf("expansion -> churned: %v", err)
	}

	illegal := [][2]int{
		{StatusOrdered, StatusChurned},
		{StatusOrdered, StatusOrdered},
		{StatusChurned, StatusPresale},
		{StatusPresale, StatusExpansion},
	}
	for _, edge := range illegal {
		if _, err := s.Step(edge[0], edge[1]); err == nil {
			t.Errorf("edge %d -> %d accepted, want rejection", edge[0], edge[1])
		}
	}

	if !s.Deletable(StatusPresale) {
		t.Error("presale orders must be deletable")
	}
	for _, st := range []int{StatusOrdered, StatusExpansion, StatusChurned} {
		if s.Deletable(st) {
			t.Errorf("status %d must not be deletable", st)
		}
	}
}

func TestRetailSchemaEdges(t *testing.T) {
	s := RetailSchema()

	rule, err := s.Step(RetailPendingPayment, RetailPaid)
	if err != nil {
		t.Fatalf("pending -> paid: %v", err)
	}
	if rule.SideEffect != lifecycle.EffectSetPayTime {
		t.Errorf("pay side effect = %q", rule.SideEffect)
	}
	for _, edge := range [][2]int{
		{RetailPaid, RetailShipped},
		{RetailShipped, RetailCompleted},
		{RetailPendingPayment, RetailCancelled},
	} {
		if _, err := s.Step(edge[0], edge[1]); err != nil {
			t.Errorf("edge %d -> %d: %v", edge[0], edge[1], err)
		}
	}

	if _, err := s.Step(RetailPaid, RetailCancelled); err == nil {
		t.Error("paid -> cancelled accepted, want rejection")
	}
	if !s.Terminal(RetailCompleted) || !s.Terminal(RetailCancelled) {
		t.Error("completed and cancelled must be terminal")
	}
}

func TestSchemaByName(t *testing.T) {
	if s, err := SchemaByName(""); err != nil || s.Name != SchemaSubscription {
		t.Fatalf("default schema = %q, err %v", s.Name, err)
	}
	if s, err := SchemaByName(SchemaRetail); err != nil || s.Name != SchemaRetail {
		t.Fatalf("retail schema = %q, err %v", s.Name, err)
	}
	if _, err := SchemaByName("wholesale"); err == nil {
		t.Fatal("unknown schema accepted")
	}
}

func TestValidate(t *testing.T) {
	valid := Order{
		Cid:               "C1",
		CustomerName:      "客户A",
		ProductVersion:    ProductExclusive,
		DevScale:          10,
		PurchasedLicCount: 2,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Order)
		field  string
	}{
		{"missing cid", func(o *Order) { o.Cid = "  " }, "cid"},
		{"missing customer", func(o *Order) { o.CustomerName = "" }, "customerName"},
		{"zero devScale", func(o *Order) { o.DevScale = 0 }, "devScale"},
		{"negative count", func(o *Order) { o.PurchasedLicCount = -1 }, "purchasedLicCount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := valid
			tc.mutate(&o)
			var ve *ValidationError
			if err := o.Validate(); !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("err = %v, want ValidationError on %s", err, tc.field)
			}
		})
	}
}

func TestMarkPaidIsWriteOnce(t *testing.T) {
	o := Order{}
	first := auditNow
	o.MarkPaid(first)
	if o.PayTime == nil || !o.PayTime.Equal(first) {
		t.Fatalf("payTime = %v, want %v", o.PayTime, first)
	}
	o.MarkPaid(first.Add(time.Hour))
	if !o.PayTime.Equal(first) {
		t.Fatalf("payTime overwritten: %v", o.PayTime)
	}
}
