package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/entities"
	"safety-inspection/pkg/api"
	"safety-inspection/pkg/contextkeys"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/service"
)

type UserLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

type TokenRevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthMiddleware struct {
	jwtService  service.JWTService
	users       UserLoader
	revocations TokenRevocationChecker
	logger      *zap.Logger
}

func NewAuthMiddleware(jwtSvc service.JWTService, users UserLoader, revocations TokenRevocationChecker, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService:  jwtSvc,
		users:       users,
		revocations: revocations,
		logger:      logger,
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.ErrEmptyAuthHeader
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.ErrInvalidAuthHeader
	}
	return parts[1], nil
}

// Authenticate resolves an access token to an active principal.
func (m *AuthMiddleware) Authenticate(ctx context.Context, tokenString string) (*authz.Principal, *service.JwtCustomClaim, error) {
	claims, err := m.jwtService.ValidateToken(tokenString)
	if err != nil {
		return nil, nil, err
	}
	if claims.IsRefreshToken {
		return nil, nil, apperrors.ErrTokenIsNotAccess
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(ctx, claims.TokenID())
		if err != nil {
			m.logger.Error("AuthMiddleware: revocation check failed", zap.Error(err))
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrAuthUnavailable, err)
		}
		if revoked {
			return nil, nil, apperrors.ErrTokenRevoked
		}
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, nil, apperrors.ErrInvalidToken
	}
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.ErrUnauthorized
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, apperrors.ErrInactiveUser
	}

	return authz.NewPrincipal(user), claims, nil
}

func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString, err := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			m.logger.Debug("AuthMiddleware: bad Authorization header", zap.Error(err))
			return api.ErrorResponse(c, err)
		}

		principal, claims, err := m.Authenticate(c.Request().Context(), tokenString)
		if err != nil {
			m.logger.Debug("AuthMiddleware: authentication failed", zap.Error(err))
			return api.ErrorResponse(c, err)
		}

		ctx := authz.WithPrincipal(c.Request().Context(), principal)
		ctx = context.WithValue(ctx, contextkeys.ClaimsKey, claims)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// Require rejects principals whose role lacks perm. Must run after Auth.
func (m *AuthMiddleware) Require(perm authz.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := authz.PrincipalFromContext(c.Request().Context())
			if err != nil {
				return api.ErrorResponse(c, apperrors.ErrUnauthorized)
			}
			if !principal.Can(perm) {
				m.logger.Info("AuthMiddleware: permission denied",
					zap.String("staff_id", principal.StaffID),
					zap.String("role", principal.Role.String()),
					zap.String("permission", string(perm)),
				)
				return api.ErrorResponse(c, apperrors.ErrForbidden)
			}
			return next(c)
		}
	}
}

// ClaimsFromContext returns the access-token claims stored by Auth.
func ClaimsFromContext(ctx context.Context) (*service.JwtCustomClaim, bool) {
	claims, ok := ctx.Value(contextkeys.ClaimsKey).(*service.JwtCustomClaim)
	return claims, ok
}
