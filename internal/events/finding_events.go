package events

import (
	"time"

	"github.com/google/uuid"

	"safety-inspection/internal/entities"
)

const (
	FindingCreatedName       = "finding.created"
	FindingStatusChangedName = "finding.status_changed"
)

// FindingCreatedEvent is published after the finding transaction commits.
type FindingCreatedEvent struct {
	Finding    entities.Finding `json:"finding"`
	Reporter   entities.User    `json:"reporter"`
	AreaName   string           `json:"area_name"`
	PhotoCount int              `json:"photo_count"`
}

func (e FindingCreatedEvent) Name() string { return FindingCreatedName }

type FindingStatusChangedEvent struct {
	Finding   entities.Finding `json:"finding"`
	OldStatus entities.Status  `json:"old_status"`
	NewStatus entities.Status  `json:"new_status"`
	Notes     *string          `json:"notes,omitempty"`
	ActorID   uuid.UUID        `json:"actor_id"`
	ActorName string           `json:"actor_name"`
	ChangedAt time.Time        `json:"changed_at"`
}

func (e FindingStatusChangedEvent) Name() string { return FindingStatusChangedName }
