package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/utils"
)

const (
	UserPageSizeDefault = 100
	UserPageSizeMax     = 100
)

type UserServiceInterface interface {
	List(ctx context.Context, filter repositories.UserFilter) ([]dto.UserDTO, uint64, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.UserDTO, error)
	Create(ctx context.Context, payload dto.CreateUserDTO) (*dto.UserDTO, error)
	Update(ctx context.Context, id uuid.UUID, payload dto.UpdateUserDTO) (*dto.UserDTO, error)
	Deactivate(ctx context.Context, actorID, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) (*dto.UserDTO, error)

	GetByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error)
	RegisterFromTelegram(ctx context.Context, payload dto.TelegramRegistrationDTO) (*entities.User, error)
}

type UserService struct {
	userRepo repositories.UserRepositoryInterface
	logger   *zap.Logger
	now      func() time.Time
}

func NewUserService(userRepo repositories.UserRepositoryInterface, logger *zap.Logger) UserServiceInterface {
	return &UserService{userRepo: userRepo, logger: logger, now: time.Now}
}

func (s *UserService) List(ctx context.Context, filter repositories.UserFilter) ([]dto.UserDTO, uint64, error) {
	users, total, err := s.userRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.UserDTO, 0, len(users))
	for i := range users {
		out = append(out, toUserDTO(&users[i]))
	}
	return out, total, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*dto.UserDTO, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	res := toUserDTO(user)
	return &res, nil
}

func (s *UserService) find(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("User not found")
	}
	return user, err
}

func (s *UserService) Create(ctx context.Context, payload dto.CreateUserDTO) (*dto.UserDTO, error) {
	role := entities.RoleReporter
	if payload.Role != "" {
		r, err := entities.ParseRole(payload.Role)
		if err != nil {
			return nil, apperrors.NewBadRequestError(err.Error())
		}
		role = r
	}
	if role.RequiresPassword() && payload.Password == "" {
		return nil, apperrors.NewBadRequestError("Password is required for admin users")
	}

	staffID := strings.TrimSpace(payload.StaffID)
	if _, err := s.userRepo.FindByStaffID(ctx, staffID); err == nil {
		return nil, apperrors.NewConflictError("User with this staff ID already exists")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	user := &entities.User{
		ID:         uuid.New(),
		TelegramID: payload.TelegramID,
		Username:   payload.Username,
		FullName:   strings.TrimSpace(payload.FullName),
		StaffID:    staffID,
		Department: strings.TrimSpace(payload.Department),
		Section:    strings.TrimSpace(payload.Section),
		Role:       role,
		IsActive:   payload.IsActive == nil || *payload.IsActive,
	}
	user.CreatedAt, user.UpdatedAt = now, now

	if payload.Password != "" {
		hash, err := utils.HashPassword(payload.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User created", zap.String("staff_id", user.StaffID), zap.String("role", string(user.Role)))

	res := toUserDTO(user)
	return &res, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, payload dto.UpdateUserDTO) (*dto.UserDTO, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload.FullName.Valid {
		user.FullName = strings.TrimSpace(payload.FullName.String)
	}
	if payload.Department.Valid {
		user.Department = strings.TrimSpace(payload.Department.String)
	}
	if payload.Section.Valid {
		user.Section = strings.TrimSpace(payload.Section.String)
	}
	if payload.Role.Valid {
		role, err := entities.ParseRole(payload.Role.String)
		if err != nil {
			return nil, apperrors.NewBadRequestError(err.Error())
		}
		user.Role = role
	}
	if payload.IsActive.Valid {
		user.IsActive = payload.IsActive.Bool
	}
	if payload.Password.Valid && payload.Password.String != "" {
		hash, err := utils.HashPassword(payload.Password.String)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	res := toUserDTO(user)
	return &res, nil
}

// Deactivate is a soft delete.
func (s *UserService) Deactivate(ctx context.Context, actorID, id uuid.UUID) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if actorID == id {
		return apperrors.NewBadRequestError("Cannot deactivate yourself")
	}
	if err := s.userRepo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info("User deactivated", zap.String("user_id", id.String()), zap.String("actor_id", actorID.String()))
	return nil
}

func (s *UserService) Activate(ctx context.Context, id uuid.UUID) (*dto.UserDTO, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	if err := s.userRepo.SetActive(ctx, id, true); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error) {
	return s.userRepo.FindByTelegramID(ctx, telegramID)
}

// RegisterFromTelegram creates a reporter bound to the Telegram account.
func (s *UserService) RegisterFromTelegram(ctx context.Context, payload dto.TelegramRegistrationDTO) (*entities.User, error) {
	department, ok := entities.CanonicalDepartment(payload.Department)
	if !ok {
		return nil, apperrors.NewBadRequestError("Unknown department")
	}

	now := s.now()
	telegramID := payload.TelegramID
	user := &entities.User{
		ID:         uuid.New(),
		TelegramID: &telegramID,
		Username:   payload.Username,
		FullName:   strings.TrimSpace(payload.FullName),
		StaffID:    strings.TrimSpace(payload.StaffID),
		Department: department,
		Section:    strings.TrimSpace(payload.Section),
		Role:       entities.RoleReporter,
		IsActive:   true,
	}
	user.CreatedAt, user.UpdatedAt = now, now

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User registered via Telegram",
		zap.String("staff_id", user.StaffID),
		zap.Int64("telegram_id", telegramID),
	)
	return user, nil
}
