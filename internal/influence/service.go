// Package influence wires the influence ledger to the record store
// facade. Unlike orders, influence mutations carry no reason and leave
// no textual annotation; the structured event channel still records
// every status change and deletion.
package influence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nazeru/crm-orders-go/internal/influence/domain"
	"github.com/nazeru/crm-orders-go/pkg/contracts"
	"github.com/nazeru/crm-orders-go/pkg/logging"
)

// Store is the slice of the record store facade this service needs.
type Store interface {
	GetInfluence(ctx context.Context, id string) (domain.Influence, error)
	ListInfluences(ctx context.Context, activityType string) ([]domain.Influence, error)
	PutInfluence(ctx context.Context, inf domain.Influence) (domain.Influence, error)
	DeleteInfluence(ctx context.Context, id string) error
}

type Service struct {
	store  Store
	sink   contracts.Sink
	now    func() time.Time
	suffix func() string
}

func NewService(store Store, sink contracts.Sink) *Service {
	return &Service{
		store:  store,
		sink:   sink,
		now:    time.Now,
		suffix: uuid.NewString,
	}
}

// WithClock and WithIDGenerator override time and id sources. Test hooks.
func (s *Service) WithClock(now func() time.Time) *Service { s.now = now; return s }
func (s *Service) WithIDGenerator(gen func() string) *Service { s.suffix = gen; return s }

// CreateInput carries the client-supplied fields of a new record. Status
// defaults to planned when omitted; an omitted id is generated.
type CreateInput struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	EventTime time.Time `json:"eventTime"`
	Link      string    `json:"link"`
	Remark    string    `json:"remark"`
	ImageURLs []string  `json:"imageUrls"`
	Actor     string    `json:"-"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Influence, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = domain.IDPrefix + s.suffix()
	}
	status := in.Status
	if status == "" {
		status = domain.StatusPlanned
	}
	inf := domain.Influence{
		ID:         id,
		Name:       in.Name,
		Type:       in.Type,
		Status:     status,
		EventTime:  in.EventTime,
		Link:       in.Link,
		Remark:     in.Remark,
		ImageURLs:  in.ImageURLs,
		CreateTime: s.now().UTC(),
	}
	if err := inf.Validate(); err != nil {
		return domain.Influence{}, err
	}

	stored, err := s.store.PutInfluence(ctx, inf)
	if err != nil {
		return domain.Influence{}, err
	}
	s.emit(ctx, contracts.AuditEvent{
		Type:     contracts.EventInfluenceCreated,
		EntityID: stored.ID,
		ToStatus: stored.Status,
		Actor:    in.Actor,
	})
	return stored, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Influence, error) {
	return s.store.GetInfluence(ctx, id)
}

// List returns records newest event first; a non-empty activityType
// filters by kind after checking it against the closed set.
func (s *Service) List(ctx context.Context, activityType string) ([]domain.Influence, error) {
	if activityType != "" && !domain.ValidType(activityType) {
		return nil, &domain.ValidationError{Field: "type", Reason: "not a known activity type"}
	}
	return s.store.ListInfluences(ctx, activityType)
}

// UpdateInput carries a full update of mutable fields.
type UpdateInput struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	EventTime time.Time `json:"eventTime"`
	Link      string    `json:"link"`
	Remark    string    `json:"remark"`
	ImageURLs []string  `json:"imageUrls"`
	Actor     string    `json:"-"`
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (domain.Influence, error) {
	cur, err := s.store.GetInfluence(ctx, id)
	if err != nil {
		return domain.Influence{}, err
	}

	next := cur
	next.Name = in.Name
	next.Type = in.Type
	next.Status = in.Status
	next.EventTime = in.EventTime
	next.Link = in.Link
	next.Remark = in.Remark
	next.ImageURLs = in.ImageURLs
	if err := next.Validate(); err != nil {
		return domain.Influence{}, err
	}

	statusChanged := in.Status != cur.Status
	if statusChanged {
		if _, err := domain.Schema().Step(cur.Status, in.Status); err != nil {
			return domain.Influence{}, err
		}
	}

	stored, err := s.store.PutInfluence(ctx, next)
	if err != nil {
		return domain.Influence{}, err
	}
	if statusChanged {
		s.emit(ctx, contracts.AuditEvent{
			Type:       contracts.EventInfluenceStatusChanged,
			EntityID:   id,
			FromStatus: cur.Status,
			ToStatus:   in.Status,
			Actor:      in.Actor,
		})
	}
	return stored, nil
}

// Delete removes a record from any state. Influence records are
// informational, not financial commitments: no reason is required.
func (s *Service) Delete(ctx context.Context, id, actor string) error {
	cur, err := s.store.GetInfluence(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteInfluence(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, contracts.AuditEvent{
		Type:       contracts.EventInfluenceDeleted,
		EntityID:   id,
		FromStatus: cur.Status,
		Actor:      actor,
	})
	return nil
}

// emit is best effort relative to the already-persisted mutation; a
// failed publish is logged with the event identity rather than dropped.
func (s *Service) emit(ctx context.Context, evt contracts.AuditEvent) {
	if s.sink == nil {
		return
	}
	evt.EventID = s.suffix()
	evt.Entity = contracts.EntityInfluence
	evt.OccurredAt = s.now().UTC()
	if err := s.sink.Publish(ctx, evt); err != nil {
		logging.Log(logging.Fields{
			Service:    "influence_service",
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
