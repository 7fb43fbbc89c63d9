package contracts

import (
	"context"
	"time"
)

// AuditEvent is the structured twin of the textual audit line embedded in
// an entity's description. The text stays the compatibility contract;
// this event feeds downstream tooling that must not parse free text.
type AuditEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	Entity     string    `json:"entity"`
	EntityID   string    `json:"entity_id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EntityOrder     = "order"
	EntityInfluence = "influence"
)

const (
	EventOrderCreated           = "order.created"
	EventOrderStatusChanged     = "order.status_changed"
	EventOrderDeleted           = "order.deleted"
	EventInfluenceCreated       = "influence.created"
	EventInfluenceStatusChanged = "influence.status_changed"
	EventInfluenceDeleted       = "influence.deleted"
)

// Sink receives audit events. Implementations: transactional outbox
// (postgres deployments), structured log (memory deployments).
type Sink interface {
	Publish(ctx context.Context, evt AuditEvent) error
}
