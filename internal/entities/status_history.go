package entities

import (
	"time"

	"github.com/google/uuid"
)

const InitialHistoryNote = "Finding created"

// StatusHistory is append-only. OldStatus is nil on the creation row.
type StatusHistory struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FindingID uuid.UUID `json:"finding_id" db:"finding_id"`
	OldStatus *Status   `json:"old_status" db:"old_status"`
	NewStatus Status    `json:"new_status" db:"new_status"`
	Notes     *string   `json:"notes" db:"notes"`
	UpdatedBy uuid.UUID `json:"updated_by" db:"updated_by"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
