package dto

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
)

type UserDTO struct {
	ID         uuid.UUID `json:"id"`
	TelegramID *int64    `json:"telegram_id"`
	Username   *string   `json:"username"`
	FullName   string    `json:"full_name"`
	StaffID    string    `json:"staff_id"`
	Department string    `json:"department"`
	Section    string    `json:"section"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ShortUserDTO struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	StaffID    string    `json:"staff_id"`
	Department string    `json:"department"`
	Section    string    `json:"section"`
	Role       string    `json:"role"`
}

type CreateUserDTO struct {
	TelegramID *int64  `json:"telegram_id"`
	Username   *string `json:"username" validate:"omitempty,max=255"`
	FullName   string  `json:"full_name" validate:"required,max=255"`
	StaffID    string  `json:"staff_id" validate:"required,max=50"`
	Department string  `json:"department" validate:"required,max=100"`
	Section    string  `json:"section" validate:"required,max=100"`
	Role       string  `json:"role" validate:"omitempty,user_role"`
	Password   string  `json:"password" validate:"omitempty,min=8,max=128"`
	IsActive   *bool   `json:"is_active"`
}

type UpdateUserDTO struct {
	FullName   null.String `json:"full_name" validate:"omitempty,min=1,max=255"`
	Department null.String `json:"department" validate:"omitempty,max=100"`
	Section    null.String `json:"section" validate:"omitempty,max=100"`
	Role       null.String `json:"role" validate:"omitempty,user_role"`
	IsActive   null.Bool   `json:"is_active"`
	Password   null.String `json:"password" validate:"omitempty,min=8,max=128"`
}

// TelegramRegistrationDTO is what the bot collects before creating a reporter.
type TelegramRegistrationDTO struct {
	TelegramID int64   `validate:"required"`
	Username   *string `validate:"omitempty,max=255"`
	FullName   string  `validate:"required,max=255"`
	StaffID    string  `validate:"required,min=2,max=50"`
	Department string  `validate:"required,department"`
	Section    string  `validate:"required,max=100"`
}
