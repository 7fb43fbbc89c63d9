package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingReason means a destructive operation was requested without
// the mandatory operator-supplied reason.
var ErrMissingReason = errors.New("reason is required")

// Audit lines keep the exact wording existing consumers already parse.
const auditTimeLayout = "2006-01-02 15:04:05"

// AnnotateStatusChange appends a status-change audit line to the
// description when a reason was supplied. The description is an
// append-only log: prior content is preserved verbatim, newest entry
// last. With an empty reason the description is returned unchanged (the
// structured event on the side channel still records the transition).
func AnnotateStatusChange(description, fromLabel, toLabel, reason string, now time.Time) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return description
	}
	line := fmt.Sprintf("[%s] 状态修改: %s → %s, 原因: %s",
		now.Format(auditTimeLayout), fromLabel, toLabel, reason)
	return appendAuditLine(description, line)
}

// AnnotateDeletion appends the deletion audit line. The reason is
// mandatory: deletion without one fails with ErrMissingReason.
func AnnotateDeletion(description, reason string, now time.Time) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", ErrMissingReason
	}
	line := fmt.Sprintf("[%s] 订单删除：%s", now.Format(auditTimeLayout), reason)
	return appendAuditLine(description, line), nil
}

func appendAuditLine(description, line string) string {
	if description == "" {
		return line
	}
	return description + "\n" + line
}
