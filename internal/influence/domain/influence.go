// Package domain holds the influence activity record and its lifecycle
// schema. Influence records are informational, not financial: their
// lifecycle is deliberately a distinct table from orders and their
// deletion carries no reason requirement.
package domain

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nazeru/crm-orders-go/internal/lifecycle"
)

// Activity kinds.
const (
	TypeSATraining         = "SA_TRAINING"
	TypeLogo               = "LOGO"
	TypeCaseStudy          = "CASE_STUDY"
	TypeCompetitorAnalysis = "COMPETITOR_ANALYSIS"
	TypeDemo               = "DEMO"
	TypeConferenceSharing  = "CONFERENCE_SHARING"
)

// Activity states.
const (
	StatusPlanned    = "PLANNED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

const (
	maxNameLen   = 200
	maxRemarkLen = 2000
	maxImageURLs = 10
)

// IDPrefix marks generated influence record identifiers.
const IDPrefix = "INF_"

var validTypes = map[string]bool{
	TypeSATraining:         true,
	TypeLogo:               true,
	TypeCaseStudy:          true,
	TypeCompetitorAnalysis: true,
	TypeDemo:               true,
	TypeConferenceSharing:  true,
}

// Influence records one influence activity: a training, a logo
// placement, a published case study and so on.
type Influence struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	EventTime  time.Time  `json:"eventTime"`
	Link       string     `json:"link,omitempty"`
	Remark     string     `json:"remark,omitempty"`
	ImageURLs  []string   `json:"imageUrls,omitempty"`
	CreateTime time.Time  `json:"createTime"`
	UpdateTime *time.Time `json:"updateTime,omitempty"`

	// Version is the optimistic-lock counter maintained by the store.
	Version int64 `json:"version"`
}

// ValidationError mirrors the order package's field error; kept separate
// so influence constraints can evolve independently.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// Schema is the influence lifecycle: planned -> in progress -> completed,
// cancellable while not finished. Completed and cancelled are terminal.
// Records are deletable from every state.
func Schema() lifecycle.Schema[string] {
	s, err := lifecycle.NewSchema("influence",
		map[string]string{
			StatusPlanned:    "计划中",
			StatusInProgress: "进行中",
			StatusCompleted:  "已完成",
			StatusCancelled:  "已取消",
		},
		[]lifecycle.Rule[string]{
			{From: StatusPlanned, To: StatusInProgress, Trigger: "start"},
			{From: StatusInProgress, To: StatusCompleted, Trigger: "complete"},
			{From: StatusPlanned, To: StatusCancelled, Trigger: "cancel"},
			{From: StatusInProgress, To: StatusCancelled, Trigger: "cancel"},
		},
		[]string{StatusPlanned, StatusInProgress, StatusCompleted, StatusCancelled},
	)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidType reports membership in the closed activity-kind set.
func ValidType(t string) bool {
	return validTypes[t]
}

// Validate checks field constraints. Unknown type or status values are
// rejected here, never stored.
func (inf *Influence) Validate() error {
	if strings.TrimSpace(inf.ID) == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if strings.TrimSpace(inf.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if utf8.RuneCountInString(inf.Name) > maxNameLen {
		return &ValidationError{Field: "name", Reason: "longer than 200 characters"}
	}
	if !ValidType(inf.Type) {
		return &ValidationError{Field: "type", Reason: "not a known activity type"}
	}
	if !Schema().Valid(inf.Status) {
		return &ValidationError{Field: "status", Reason: "not a known status"}
	}
	if inf.EventTime.IsZero() {
		return &ValidationError{Field: "eventTime", Reason: "required"}
	}
	if link := strings.TrimSpace(inf.Link); link != "" && !validURL(link) {
		return &ValidationError{Field: "link", Reason: "malformed URL"}
	}
	if utf8.RuneCountInString(inf.Remark) > maxRemarkLen {
		return &ValidationError{Field: "remark", Reason: "longer than 2000 characters"}
	}
	if len(inf.ImageURLs) > maxImageURLs {
		return &ValidationError{Field: "imageUrls", Reason: "more than 10 images"}
	}
	return nil
}

// validURL accepts http(s) URLs; a bare hostname with a dot is fine, the
// scheme is optional.
func validURL(raw string) bool {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.Contains(u.Host, ".")
}
