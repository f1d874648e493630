package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"safety-inspection/pkg/types"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func ParseSeverity(s string) (Severity, error) {
	switch v := Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return v, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

func (s Severity) String() string { return string(s) }

func (s Severity) Label() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	case SeverityCritical:
		return "Critical"
	}
	return string(s)
}

func (s Severity) Emoji() string {
	switch s {
	case SeverityLow:
		return "🟢"
	case SeverityMedium:
		return "🟡"
	case SeverityHigh:
		return "🟠"
	case SeverityCritical:
		return "🔴"
	}
	return "⚪"
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

func ParseStatus(s string) (Status, error) {
	switch v := Status(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return v, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) String() string { return string(s) }

func (s Status) Label() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusInProgress:
		return "In Progress"
	case StatusResolved:
		return "Resolved"
	case StatusClosed:
		return "Closed"
	}
	return string(s)
}

type Finding struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ReportID    string     `json:"report_id" db:"report_id"`
	ReporterID  uuid.UUID  `json:"reporter_id" db:"reporter_id"`
	AreaID      uuid.UUID  `json:"area_id" db:"area_id"`
	Description string     `json:"description" db:"description"`
	Severity    Severity   `json:"severity" db:"severity"`
	Status      Status     `json:"status" db:"status"`
	Location    *string    `json:"location,omitempty" db:"location"`
	ReportedAt  time.Time  `json:"reported_at" db:"reported_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty" db:"assigned_to"`

	types.BaseEntity
}

// ApplyStatus moves f to next and returns the previous status.
// closed_at is stamped when next is closed and left alone otherwise, including on reopen.
func (f *Finding) ApplyStatus(next Status, now time.Time) Status {
	old := f.Status
	f.Status = next
	if next == StatusClosed {
		closedAt := now
		f.ClosedAt = &closedAt
	}
	f.UpdatedAt = now
	return old
}
