package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	influencedomain "github.com/nazeru/crm-orders-go/internal/influence/domain"
	orderdomain "github.com/nazeru/crm-orders-go/internal/order/domain"
)

func testOrder(cid string, created time.Time) orderdomain.Order {
	return orderdomain.Order{
		Cid:               cid,
		CustomerName:      "客户A",
		ProductVersion:    orderdomain.ProductExclusive,
		DevScale:          10,
		PurchasedLicCount: 2,
		TotalAmount:       decimal.RequireFromString("318.00"),
		CreateTime:        created,
	}
}

func TestPutOrderInsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 7, 13, 9, 0, 0, 0, time.UTC)

	stored, err := m.PutOrder(ctx, testOrder("C1", base))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if stored.Version != 1 {
		t.Fatalf("insert version = %d, want 1", stored.Version)
	}
	if stored.UpdateTime == nil {
		t.Fatal("updateTime not set on insert")
	}

	stored.Status = orderdomain.StatusOrdered
	updated, err := m.PutOrder(ctx, stored)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("update version = %d, want 2", updated.Version)
	}
	if updated.UpdateTime == nil {
		t.Fatal("updateTime not set on update")
	}

	got, err := m.GetOrder(ctx, "C1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != orderdomain.StatusOrdered {
		t.Fatalf("status = %d after update", got.Status)
	}
}

func TestPutOrderStampsUpdateTimeOnEveryPut(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 7, 13, 9, 0, 0, 0, time.UTC)
	tick := 0
	m := NewMemory().WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	stored, err := m.PutOrder(ctx, testOrder("C1", base))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if stored.UpdateTime == nil || !stored.UpdateTime.Equal(base.Add(time.Minute)) {
		t.Fatalf("insert updateTime = %v, want %v", stored.UpdateTime, base.Add(time.Minute))
	}

	updated, err := m.PutOrder(ctx, stored)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UpdateTime == nil || !updated.UpdateTime.After(*stored.UpdateTime) {
		t.Fatalf("update updateTime = %v, want later than %v", updated.UpdateTime, stored.UpdateTime)
	}
}

func TestPutOrderConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 7, 13, 9, 0, 0, 0, time.UTC)

	first, err := m.PutOrder(ctx, testOrder("C1", base))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Duplicate insert.
	if _, err := m.PutOrder(ctx, testOrder("C1", base)); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate insert err = %v, want ErrConflict", err)
	}

	// Two readers, one wins, the stale one conflicts.
	winner := first
	winner.Status = orderdomain.StatusOrdered
	if _, err := m.PutOrder(ctx, winner); err != nil {
		t.Fatalf("winning update: %v", err)
	}
	stale := first
	stale.Status = orderdomain.StatusOrdered
	if _, err := m.PutOrder(ctx, stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale update err = %v, want ErrConflict", err)
	}

	// Update of a missing order.
	missing := testOrder("C2", base)
	missing.Version = 1
	if _, err := m.PutOrder(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing update err = %v, want ErrNotFound", err)
	}
}

func TestListOrdersFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 7, 13, 9, 0, 0, 0, time.UTC)

	older := testOrder("C1", base)
	newer := testOrder("C2", base.Add(time.Hour))
	other := testOrder("C3", base.Add(2*time.Hour))
	other.CustomerName = "客户B"
	for _, o := range []orderdomain.Order{older, newer, other} {
		if _, err := m.PutOrder(ctx, o); err != nil {
			t.Fatalf("insert %s: %v", o.Cid, err)
		}
	}

	all, err := m.ListOrders(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].Cid != "C3" || all[2].Cid != "C1" {
		t.Fatalf("unexpected order of %d results", len(all))
	}

	filtered, err := m.ListOrders(ctx, "客户A")
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 2 || filtered[0].Cid != "C2" {
		t.Fatalf("filter returned %d results", len(filtered))
	}
}

func TestDeleteOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.PutOrder(ctx, testOrder("C1", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.DeleteOrder(ctx, "C1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetOrder(ctx, "C1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete err = %v, want ErrNotFound", err)
	}
	if err := m.DeleteOrder(ctx, "C1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestInfluenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	inf := influencedomain.Influence{
		ID:        "INF_001",
		Name:      "SA培训",
		Type:      influencedomain.TypeSATraining,
		Status:    influencedomain.StatusPlanned,
		EventTime: time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC),
		ImageURLs: []string{"https://example.com/1.png"},
	}

	stored, err := m.PutInfluence(ctx, inf)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Mutating the returned slice must not leak into the store.
	stored.ImageURLs[0] = "tampered"
	got, err := m.GetInfluence(ctx, "INF_001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ImageURLs[0] != "https://example.com/1.png" {
		t.Fatalf("stored slice aliased caller memory: %q", got.ImageURLs[0])
	}

	// Stale version conflicts.
	stale := got
	stale.Version = 99
	if _, err := m.PutInfluence(ctx, stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale update err = %v, want ErrConflict", err)
	}
}

func TestListInfluencesByType(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC)
	records := []influencedomain.Influence{
		{ID: "INF_1", Name: "a", Type: influencedomain.TypeDemo, Status: influencedomain.StatusPlanned, EventTime: base},
		{ID: "INF_2", Name: "b", Type: influencedomain.TypeLogo, Status: influencedomain.StatusPlanned, EventTime: base.Add(time.Hour)},
		{ID: "INF_3", Name: "c", Type: influencedomain.TypeDemo, Status: influencedomain.StatusPlanned, EventTime: base.Add(2 * time.Hour)},
	}
	for _, inf := range records {
		if _, err := m.PutInfluence(ctx, inf); err != nil {
			t.Fatalf("insert %s: %v", inf.ID, err)
		}
	}

	demos, err := m.ListInfluences(ctx, influencedomain.TypeDemo)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(demos) != 2 || demos[0].ID != "INF_3" || demos[1].ID != "INF_1" {
		t.Fatalf("unexpected filter result: %+v", demos)
	}
}
