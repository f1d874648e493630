package dto

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
)

type AreaDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	Level       int        `json:"level"`
	FullPath    string     `json:"full_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type ShortAreaDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	FullPath string    `json:"full_path,omitempty"`
	Level    int       `json:"level"`
}

// AreaTreeDTO is an area with its children expanded to the requested depth.
type AreaTreeDTO struct {
	AreaDTO
	Children []AreaTreeDTO `json:"children"`
}

type CreateAreaDTO struct {
	Name        string     `json:"name" validate:"required,min=1,max=255"`
	Description *string    `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

// UpdateAreaDTO moves the area when ParentID is set, or to the top level when MakeRoot is true.
type UpdateAreaDTO struct {
	Name        null.String `json:"name" validate:"omitempty,min=1,max=255"`
	Description null.String `json:"description"`
	ParentID    *uuid.UUID  `json:"parent_id"`
	MakeRoot    bool        `json:"make_root"`
}

type AssignAreaAdminDTO struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}
