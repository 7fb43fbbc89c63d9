package logging

import (
	"context"

	"github.com/nazeru/crm-orders-go/pkg/contracts"
)

// AuditSink writes audit events to the structured log. Used when no
// database-backed outbox is available (memory store deployments).
type AuditSink struct {
	Service string
}

func (s AuditSink) Publish(_ context.Context, evt contracts.AuditEvent) error {
	Log(Fields{
		Service:    s.Service,
		Entity:     evt.Entity,
		EntityID:   evt.EntityID,
		EventID:    evt.EventID,
		Step:       evt.Type,
		FromStatus: evt.FromStatus,
		ToStatus:   evt.ToStatus,
		Message:    evt.Reason,
	})
	return nil
}
