// Package order wires the order domain to the record store facade and
// the audit event side channel. All methods treat read-validate-write as
// a critical section per cid: the store detects concurrent writers and
// the service surfaces its Conflict as-is, never retrying (a retry could
// duplicate audit log entries).
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nazeru/crm-orders-go/internal/lifecycle"
	"github.com/nazeru/crm-orders-go/internal/order/domain"
	"github.com/nazeru/crm-orders-go/pkg/contracts"
	"github.com/nazeru/crm-orders-go/pkg/logging"
)

// ErrDeleteNotPermitted means the order's current status forbids
// deletion (only presale orders may be removed).
var ErrDeleteNotPermitted = errors.New("order delete not permitted in current status")

// Store is the slice of the record store facade this service needs.
type Store interface {
	GetOrder(ctx context.Context, cid string) (domain.Order, error)
	ListOrders(ctx context.Context, customerName string) ([]domain.Order, error)
	PutOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	DeleteOrder(ctx context.Context, cid string) error
}

type Service struct {
	store   Store
	catalog *domain.Catalog
	schema  lifecycle.Schema[int]
	sink    contracts.Sink
	now     func() time.Time
	newID   func() string
}

func NewService(store Store, catalog *domain.Catalog, schema lifecycle.Schema[int], sink contracts.Sink) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		schema:  schema,
		sink:    sink,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// WithClock and WithIDGenerator override time and id sources. Test hooks.
func (s *Service) WithClock(now func() time.Time) *Service { s.now = now; return s }
func (s *Service) WithIDGenerator(gen func() string) *Service { s.newID = gen; return s }

// CreateInput carries the client-supplied fields of a new order. Status
// is absent on purpose: every order starts in state 0, and the total is
// always derived from the catalog, never read from the request.
type CreateInput struct {
	Cid               string `json:"cid"`
	CustomerName      string `json:"customerName"`
	ProductVersion    string `json:"productVersion"`
	DevScale          int    `json:"devScale"`
	PurchasedLicCount int    `json:"purchasedLicCount"`
	Description       string `json:"description"`
	Actor             string `json:"-"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Order, error) {
	cid := in.Cid
	if cid == "" {
		cid = s.newID()
	}
	o := domain.Order{
		Cid:               cid,
		CustomerName:      in.CustomerName,
		ProductVersion:    in.ProductVersion,
		DevScale:          in.DevScale,
		PurchasedLicCount: in.PurchasedLicCount,
		Description:       in.Description,
		Status:            0,
		CreateTime:        s.now().UTC(),
	}
	if err := o.Validate(); err != nil {
		return domain.Order{}, err
	}
	total, err := s.catalog.Total(o.ProductVersion, o.PurchasedLicCount)
	if err != nil {
		return domain.Order{}, err
	}
	o.TotalAmount = total

	stored, err := s.store.PutOrder(ctx, o)
	if err != nil {
		return domain.Order{}, err
	}
	s.emit(ctx, contracts.AuditEvent{
		Type:     contracts.EventOrderCreated,
		EntityID: stored.Cid,
		ToStatus: s.schema.Label(stored.Status),
		Actor:    in.Actor,
	})
	return stored, nil
}

func (s *Service) Get(ctx context.Context, cid string) (domain.Order, error) {
	return s.store.GetOrder(ctx, cid)
}

// List returns orders newest first; a non-empty customerName filters by
// owning customer.
func (s *Service) List(ctx context.Context, customerName string) ([]domain.Order, error) {
	return s.store.ListOrders(ctx, customerName)
}

// UpdateInput carries a full update of mutable order fields. Description
// is not here: the embedded audit log is append-only and owned by the
// core, clients cannot rewrite it. A submitted total is likewise ignored
// and recomputed from the catalog.
type UpdateInput struct {
	CustomerName      string `json:"customerName"`
	ProductVersion    string `json:"productVersion"`
	DevScale          int    `json:"devScale"`
	PurchasedLicCount int    `json:"purchasedLicCount"`
	Status            int    `json:"status"`
	Reason            string `json:"reason"`
	Actor             string `json:"-"`
}

func (s *Service) Update(ctx context.Context, cid string, in UpdateInput) (domain.Order, error) {
	cur, err := s.store.GetOrder(ctx, cid)
	if err != nil {
		return domain.Order{}, err
	}

	next := cur
	next.CustomerName = in.CustomerName
	next.ProductVersion = in.ProductVersion
	next.DevScale = in.DevScale
	next.PurchasedLicCount = in.PurchasedLicCount
	if err := next.Validate(); err != nil {
		return domain.Order{}, err
	}
	total, err := s.catalog.Total(next.ProductVersion, next.PurchasedLicCount)
	if err != nil {
		return domain.Order{}, err
	}
	next.TotalAmount = total

	var evt *contracts.AuditEvent
	if in.Status != cur.Status {
		rule, err := s.schema.Step(cur.Status, in.Status)
		if err != nil {
			return domain.Order{}, err
		}
		next.Status = in.Status
		s.applySideEffect(&next, rule)
		next.Description = domain.AnnotateStatusChange(next.Description,
			s.schema.Label(cur.Status), s.schema.Label(in.Status), in.Reason, s.now())
		evt = &contracts.AuditEvent{
			Type:       contracts.EventOrderStatusChanged,
			EntityID:   cid,
			FromStatus: s.schema.Label(cur.Status),
			ToStatus:   s.schema.Label(in.Status),
			Reason:     in.Reason,
			Actor:      in.Actor,
		}
	}

	stored, err := s.store.PutOrder(ctx, next)
	if err != nil {
		return domain.Order{}, err
	}
	if evt != nil {
		s.emit(ctx, *evt)
	}
	return stored, nil
}

// Advance moves an order to the requested status through the
// deployment's transition table, leaving the other fields untouched.
func (s *Service) Advance(ctx context.Context, cid string, to int, reason, actor string) (domain.Order, error) {
	cur, err := s.store.GetOrder(ctx, cid)
	if err != nil {
		return domain.Order{}, err
	}
	rule, err := s.schema.Step(cur.Status, to)
	if err != nil {
		return domain.Order{}, err
	}

	next := cur
	next.Status = to
	s.applySideEffect(&next, rule)
	next.Description = domain.AnnotateStatusChange(next.Description,
		s.schema.Label(cur.Status), s.schema.Label(to), reason, s.now())

	stored, err := s.store.PutOrder(ctx, next)
	if err != nil {
		return domain.Order{}, err
	}
	s.emit(ctx, contracts.AuditEvent{
		Type:       contracts.EventOrderStatusChanged,
		EntityID:   cid,
		FromStatus: s.schema.Label(cur.Status),
		ToStatus:   s.schema.Label(to),
		Reason:     reason,
		Actor:      actor,
	})
	return stored, nil
}

// Delete removes an order. Only orders in a deletable state (presale) may
// go, and the operator must say why: the reason is recorded on the entity
// before removal so the audit trail survives in the structured channel.
func (s *Service) Delete(ctx context.Context, cid, reason, actor string) error {
	cur, err := s.store.GetOrder(ctx, cid)
	if err != nil {
		return err
	}
	if !s.schema.Deletable(cur.Status) {
		return fmt.Errorf("%w: status %s", ErrDeleteNotPermitted, s.schema.Label(cur.Status))
	}

	annotated, err := domain.AnnotateDeletion(cur.Description, reason, s.now())
	if err != nil {
		return err
	}
	next := cur
	next.Description = annotated
	if _, err := s.store.PutOrder(ctx, next); err != nil {
		return err
	}
	if err := s.store.DeleteOrder(ctx, cid); err != nil {
		return err
	}
	s.emit(ctx, contracts.AuditEvent{
		Type:       contracts.EventOrderDeleted,
		EntityID:   cid,
		FromStatus: s.schema.Label(cur.Status),
		Reason:     reason,
		Actor:      actor,
	})
	return nil
}

func (s *Service) applySideEffect(o *domain.Order, rule lifecycle.Rule[int]) {
	if rule.SideEffect == lifecycle.EffectSetPayTime {
		o.MarkPaid(s.now())
	}
}

// emit hands the structured audit event to the side channel. Event
// delivery is best effort relative to the already-persisted mutation:
// failing the request after the write would leave the caller unable to
// tell whether the change happened. A failed publish is logged with the
// full event identity so the gap is visible to operators.
func (s *Service) emit(ctx context.Context, evt contracts.AuditEvent) {
	if s.sink == nil {
		return
	}
	evt.EventID = s.newID()
	evt.Entity = contracts.EntityOrder
	evt.OccurredAt = s.now().UTC()
	if err := s.sink.Publish(ctx, evt); err != nil {
		logging.Log(logging.Fields{
			Service:    "order_service",
			Entity:     evt.Entity,
			EntityID:   evt.EntityID,
			EventID:    evt.EventID,
			Step:       evt.Type,
			Status:     "audit_publish_failed",
			FromStatus: evt.FromStatus,
			ToStatus:   evt.ToStatus,
			Message:    err.Error(),
		})
	}
}
