package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/service"
	"safety-inspection/pkg/utils"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, payload dto.LoginDTO) (*dto.AuthResponseDTO, error)
	Me(ctx context.Context, userID uuid.UUID) (*dto.UserDTO, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.AuthResponseDTO, error)
	Logout(ctx context.Context, accessClaims *service.JwtCustomClaim, refreshToken string) error
}

type AuthService struct {
	userRepo    repositories.UserRepositoryInterface
	revocations repositories.TokenRevocationRepositoryInterface
	jwtSvc      service.JWTService
	logger      *zap.Logger
	now         func() time.Time
}

func NewAuthService(
	userRepo repositories.UserRepositoryInterface,
	revocations repositories.TokenRevocationRepositoryInterface,
	jwtSvc service.JWTService,
	logger *zap.Logger,
) AuthServiceInterface {
	return &AuthService{
		userRepo:    userRepo,
		revocations: revocations,
		jwtSvc:      jwtSvc,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, payload dto.LoginDTO) (*dto.AuthResponseDTO, error) {
	logger := s.logger.With(zap.String("staff_id", payload.StaffID))

	user, err := s.userRepo.FindByStaffID(ctx, payload.StaffID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Info("Login for unknown staff id")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		logger.Info("Login for inactive user")
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.HasPassword() {
		return nil, apperrors.ErrPasswordNotSet
	}
	if err := utils.ComparePasswords(*user.PasswordHash, payload.Password); err != nil {
		logger.Info("Login with wrong password")
		return nil, apperrors.ErrInvalidCredentials
	}

	logger.Info("User logged in", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*dto.UserDTO, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := toUserDTO(user)
	return &res, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.AuthResponseDTO, error) {
	claims, err := s.jwtSvc.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if !claims.IsRefreshToken {
		return nil, apperrors.ErrTokenIsNotRefresh
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrAuthUnavailable, err)
	}
	if revoked {
		return nil, apperrors.ErrTokenRevoked
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.ErrInactiveUser
	}

	// The used refresh token is single-use.
	if err := s.revocations.Revoke(ctx, claims.TokenID(), claims.RemainingTTL(s.now())); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Logout revokes the access token and, when given, the refresh token.
func (s *AuthService) Logout(ctx context.Context, accessClaims *service.JwtCustomClaim, refreshToken string) error {
	now := s.now()
	if accessClaims != nil {
		if err := s.revocations.Revoke(ctx, accessClaims.TokenID(), accessClaims.RemainingTTL(now)); err != nil {
			return err
		}
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.jwtSvc.ValidateToken(refreshToken)
	if err != nil {
		s.logger.Debug("Ignoring invalid refresh token on logout", zap.Error(err))
		return nil
	}
	return s.revocations.Revoke(ctx, claims.TokenID(), claims.RemainingTTL(now))
}

func (s *AuthService) issue(user *entities.User) (*dto.AuthResponseDTO, error) {
	access, refresh, err := s.jwtSvc.GenerateTokens(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponseDTO{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.jwtSvc.GetAccessTokenTTL().Seconds()),
		User:         toUserDTO(user),
	}, nil
}
