package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var auditNow = time.Date(2025, 7, 13, 10, 30, 0, 0, time.UTC)

func TestAnnotateStatusChangeAppendsLine(t *testing.T) {
	got := AnnotateStatusChange("", "售前", "已订购", "signed", auditNow)
	want := "[2025-07-13 10:30:00] 状态修改: 售前 → 已订购, 原因: signed"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAnnotateStatusChangePreservesPriorEntries(t *testing.T) {
	desc := AnnotateStatusChange("initial note", "售前", "已订购", "signed", auditNow)
	desc = AnnotateStatusChange(desc, "已订购", "扩容", "renewal", auditNow.Add(time.Hour))

	lines := strings.Split(desc, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), desc)
	}
	if lines[0] != "initial note" {
		t.Errorf("prior content rewritten: %q", lines[0])
	}
	if !strings.Contains(lines[1], "原因: signed") {
		t.Errorf("first audit entry missing: %q", lines[1])
	}
	if !strings.Contains(lines[2], "原因: renewal") {
		t.Errorf("second audit entry not last: %q", lines[2])
	}
}

func TestAnnotateStatusChangeWithoutReasonLeavesDescription(t *testing.T) {
	for _, reason := range []string{"", "   "} {
		if got := AnnotateStatusChange("note", "a", "b", reason, auditNow); got != "note" {
			t.Fatalf("reason %q: description changed to %q", reason, got)
		}
	}
}

func TestAnnotateDeletionRequiresReason(t *testing.T) {
	for _, reason := range []string{"", "  \t "} {
		_, err := AnnotateDeletion("note", reason, auditNow)
		if !errors.Is(err, ErrMissingReason) {
			t.Fatalf("reason %q: err = %v, want ErrMissingReason", reason, err)
		}
	}
}

func TestAnnotateDeletionAppendsLine(t *testing.T) {
	got, err := AnnotateDeletion("note", "duplicate entry", auditNow)
	if err != nil {
		t.Fatalf("AnnotateDeletion: %v", err)
	}
	want := "note\n[2025-07-13 10:30:00] 订单删除：duplicate entry"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
