package websocket

import "time"

// Envelope tells the client how to read Payload.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	TypeFindingCreated       = "finding.created"
	TypeFindingStatusChanged = "finding.status_changed"
)

// FindingPayload is what the admin dashboard receives for every finding event.
type FindingPayload struct {
	FindingID   string     `json:"finding_id"`
	ReportID    string     `json:"report_id"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	OldStatus   string     `json:"old_status,omitempty"`
	AreaName    string     `json:"area_name,omitempty"`
	Description string     `json:"description"`
	Actor       ActorInfo  `json:"actor"`
	Notes       *string    `json:"notes,omitempty"`
	Links       LinkInfo   `json:"links"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ActorInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type LinkInfo struct {
	Primary string `json:"primary"`
}
