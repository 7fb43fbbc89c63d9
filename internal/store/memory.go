package store

import (
	"context"
	"sort"
	"sync"
	"time"

	influencedomain "github.com/nazeru/crm-orders-go/internal/influence/domain"
	orderdomain "github.com/nazeru/crm-orders-go/internal/order/domain"
)

// Memory is the in-memory record store. A single mutex per entity kind
// serializes mutations, which also gives callers the per-entity critical
// section the facade contract promises.
type Memory struct {
	now func() time.Time

	ordersMu sync.RWMutex
	orders   map[string]orderdomain.Order

	influencesMu sync.RWMutex
	influences   map[string]influencedomain.Influence
}

func NewMemory() *Memory {
	return &Memory{
		now:        time.Now,
		orders:     make(map[string]orderdomain.Order),
		influences: make(map[string]influencedomain.Influence),
	}
}

// WithClock overrides the update-time source. Test hook.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) GetOrder(_ context.Context, cid string) (orderdomain.Order, error) {
	m.ordersMu.RLock()
	defer m.ordersMu.RUnlock()
	o, ok := m.orders[cid]
	if !ok {
		return orderdomain.Order{}, ErrNotFound
	}
	return o, nil
}

// ListOrders returns orders newest first; a non-empty customerName
// filters by exact match. An empty filter returns everything.
func (m *Memory) ListOrders(_ context.Context, customerName string) ([]orderdomain.Order, error) {
	m.ordersMu.RLock()
	defer m.ordersMu.RUnlock()
	out := make([]orderdomain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if customerName != "" && o.CustomerName != customerName {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreateTime.After(out[j].CreateTime)
	})
	return out, nil
}

// PutOrder inserts when Version is zero and updates otherwise. An insert
// over an existing cid and an update with a stale version both fail with
// ErrConflict; updating a missing order fails with ErrNotFound.
func (m *Memory) PutOrder(_ context.Context, o orderdomain.Order) (orderdomain.Order, error) {
	m.ordersMu.Lock()
	defer m.ordersMu.Unlock()

	existing, ok := m.orders[o.Cid]
	if o.Version == 0 {
		if ok {
			return orderdomain.Order{}, ErrConflict
		}
	} else {
		if !ok {
			return orderdomain.Order{}, ErrNotFound
		}
		if existing.Version != o.Version {
			return orderdomain.Order{}, ErrConflict
		}
	}
	t := m.now().UTC()
	o.UpdateTime = &t
	o.Version++
	m.orders[o.Cid] = o
	return o, nil
}

func (m *Memory) DeleteOrder(_ context.Context, cid string) error {
	m.ordersMu.Lock()
	defer m.ordersMu.Unlock()
	if _, ok := m.orders[cid]; !ok {
		return ErrNotFound
	}
	delete(m.orders, cid)
	return nil
}

func (m *Memory) GetInfluence(_ context.Context, id string) (influencedomain.Influence, error) {
	m.influencesMu.RLock()
	defer m.influencesMu.RUnlock()
	inf, ok := m.influences[id]
	if !ok {
		return influencedomain.Influence{}, ErrNotFound
	}
	return cloneInfluence(inf), nil
}

// ListInfluences returns records newest event first; a non-empty
// activity type filters by exact match.
func (m *Memory) ListInfluences(_ context.Context, activityType string) ([]influencedomain.Influence, error) {
	m.influencesMu.RLock()
	defer m.influencesMu.RUnlock()
	out := make([]influencedomain.Influence, 0, len(m.influences))
	for _, inf := range m.influences {
		if activityType != "" && inf.Type != activityType {
			continue
		}
		out = append(out, cloneInfluence(inf))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EventTime.After(out[j].EventTime)
	})
	return out, nil
}

func (m *Memory) PutInfluence(_ context.Context, inf influencedomain.Influence) (influencedomain.Influence, error) {
	m.influencesMu.Lock()
	defer m.influencesMu.Unlock()

	existing, ok := m.influences[inf.ID]
	if inf.Version == 0 {
		if ok {
			return influencedomain.Influence{}, ErrConflict
		}
	} else {
		if !ok {
			return influencedomain.Influence{}, ErrNotFound
		}
		if existing.Version != inf.Version {
			return influencedomain.Influence{}, ErrConflict
		}
	}
	t := m.now().UTC()
	inf.UpdateTime = &t
	inf.Version++
	m.influences[inf.ID] = cloneInfluence(inf)
	return inf, nil
}

func (m *Memory) DeleteInfluence(_ context.Context, id string) error {
	m.influencesMu.Lock()
	defer m.influencesMu.Unlock()
	if _, ok := m.influences[id]; !ok {
		return ErrNotFound
	}
	delete(m.influences, id)
	return nil
}

func cloneInfluence(inf influencedomain.Influence) influencedomain.Influence {
	if inf.ImageURLs != nil {
		inf.ImageURLs = append([]string(nil), inf.ImageURLs...)
	}
	return inf
}
