package entities

import (
	"github.com/google/uuid"

	"safety-inspection/pkg/types"
)

const MaxAreaLevel = 3

type Area struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Level       int        `json:"level" db:"level"`

	types.BaseEntity
}

// ChildLevel is the level a direct child of a would get.
func (a *Area) ChildLevel() int {
	return a.Level + 1
}
