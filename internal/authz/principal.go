package authz

import (
	"context"

	"github.com/google/uuid"

	"safety-inspection/internal/entities"
	"safety-inspection/pkg/contextkeys"
	apperrors "safety-inspection/pkg/errors"
)

// Principal is the authenticated caller resolved by the auth middleware.
type Principal struct {
	UserID     uuid.UUID
	StaffID    string
	FullName   string
	Role       entities.Role
	TelegramID *int64
}

func NewPrincipal(u *entities.User) *Principal {
	return &Principal{
		UserID:     u.ID,
		StaffID:    u.StaffID,
		FullName:   u.FullName,
		Role:       u.Role,
		TelegramID: u.TelegramID,
	}
}

// Can reports whether the principal's role grants p.
func (p *Principal) Can(perm Permission) bool {
	if p == nil {
		return false
	}
	for _, granted := range rolePermissions[p.Role] {
		if granted == perm {
			return true
		}
	}
	return false
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextkeys.PrincipalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	if !ok || p == nil {
		return nil, apperrors.ErrPrincipalNotFoundInContext
	}
	return p, nil
}
