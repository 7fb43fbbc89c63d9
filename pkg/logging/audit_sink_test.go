package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nazeru/crm-orders-go/pkg/contracts"
)

func TestAuditSinkRendersEventFields(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	sink := AuditSink{Service: "order_service"}
	err := sink.Publish(context.Background(), contracts.AuditEvent{
		EventID:    "evt-1",
		Type:       contracts.EventOrderStatusChanged,
		Entity:     contracts.EntityOrder,
		EntityID:   "C1",
		FromStatus: "售前",
		ToStatus:   "已订购",
		Reason:     "signed",
		OccurredAt: time.Date(2025, 7, 13, 10, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	line := buf.String()
	start := strings.Index(line, "{")
	if start < 0 {
		t.Fatalf("no json payload in %q", line)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line[start:])), &payload); err != nil {
		t.Fatalf("unmarshal %q: %v", line[start:], err)
	}

	if payload["from_status"] != "售前" || payload["to_status"] != "已订购" {
		t.Errorf("statuses = %v -> %v", payload["from_status"], payload["to_status"])
	}
	if payload["step"] != contracts.EventOrderStatusChanged {
		t.Errorf("step = %v", payload["step"])
	}
	if payload["message"] != "signed" {
		t.Errorf("message = %v", payload["message"])
	}
	if payload["entity_id"] != "C1" {
		t.Errorf("entity_id = %v", payload["entity_id"])
	}
}
