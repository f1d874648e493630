package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	apperrors "safety-inspection/pkg/errors"
)

const (
	InitialAdminStaffID  = "ADMIN001"
	DefaultAdminPassword = "admin123"

	HealthOK          = "ok"
	HealthUnavailable = "unavailable"
)

type defaultArea struct {
	name        string
	description string
}

var defaultAreas = []defaultArea{
	{"Production", "Production department"},
	{"Warehouse", "Warehouse and storage"},
	{"Office", "Office and administration"},
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type SetupServiceInterface interface {
	SeedInitialData(ctx context.Context) (*dto.SetupResultDTO, error)
	CreateSuperAdmin(ctx context.Context, payload dto.CreateUserDTO) (*dto.UserDTO, error)
	Health(ctx context.Context) dto.HealthDTO
}

type SetupService struct {
	userRepo      repositories.UserRepositoryInterface
	areaRepo      repositories.AreaRepositoryInterface
	users         UserServiceInterface
	adminPassword string
	version       string
	dbCheck       HealthCheck
	cacheCheck    HealthCheck
	logger        *zap.Logger
}

func NewSetupService(
	userRepo repositories.UserRepositoryInterface,
	areaRepo repositories.AreaRepositoryInterface,
	users UserServiceInterface,
	adminPassword, version string,
	dbCheck, cacheCheck HealthCheck,
	logger *zap.Logger,
) SetupServiceInterface {
	if adminPassword == "" {
		adminPassword = DefaultAdminPassword
	}
	return &SetupService{
		userRepo:      userRepo,
		areaRepo:      areaRepo,
		users:         users,
		adminPassword: adminPassword,
		version:       version,
		dbCheck:       dbCheck,
		cacheCheck:    cacheCheck,
		logger:        logger,
	}
}

// SeedInitialData creates ADMIN001 and the default top-level areas once.
func (s *SetupService) SeedInitialData(ctx context.Context) (*dto.SetupResultDTO, error) {
	_, err := s.userRepo.FindByStaffID(ctx, InitialAdminStaffID)
	if err == nil {
		return &dto.SetupResultDTO{Status: dto.SetupStatusAlreadyExists, AdminStaffID: InitialAdminStaffID, AreasCreated: []string{}}, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if _, err := s.users.Create(ctx, dto.CreateUserDTO{
		FullName:   "Super Admin",
		StaffID:    InitialAdminStaffID,
		Department: "Administration",
		Section:    "IT",
		Role:       string(entities.RoleSuperAdmin),
		Password:   s.adminPassword,
	}); err != nil {
		return nil, err
	}

	res := &dto.SetupResultDTO{Status: dto.SetupStatusCreated, AdminStaffID: InitialAdminStaffID, AreasCreated: []string{}}
	now := time.Now()
	for _, da := range defaultAreas {
		exists, err := s.areaRepo.ExistsByName(ctx, da.name, nil)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		desc := da.description
		area := &entities.Area{ID: uuid.New(), Name: da.name, Description: &desc, Level: 1}
		area.CreatedAt, area.UpdatedAt = now, now
		if err := s.areaRepo.Create(ctx, area); err != nil {
			return nil, err
		}
		res.AreasCreated = append(res.AreasCreated, da.name)
	}

	s.logger.Info("Initial data created", zap.Strings("areas", res.AreasCreated))
	return res, nil
}

// CreateSuperAdmin backs the seed command's flag mode.
func (s *SetupService) CreateSuperAdmin(ctx context.Context, payload dto.CreateUserDTO) (*dto.UserDTO, error) {
	payload.Role = string(entities.RoleSuperAdmin)
	if payload.Department == "" {
		payload.Department = "Administration"
	}
	if payload.Section == "" {
		payload.Section = "IT"
	}
	if payload.Password == "" {
		payload.Password = s.adminPassword
	}
	return s.users.Create(ctx, payload)
}

func (s *SetupService) Health(ctx context.Context) dto.HealthDTO {
	res := dto.HealthDTO{Status: "healthy", Database: HealthOK, Redis: HealthOK, Version: s.version}
	if s.dbCheck != nil {
		if err := s.dbCheck(ctx); err != nil {
			s.logger.Warn("Database health check failed", zap.Error(err))
			res.Database, res.Status = HealthUnavailable, "degraded"
		}
	}
	if s.cacheCheck != nil {
		if err := s.cacheCheck(ctx); err != nil {
			s.logger.Warn("Redis health check failed", zap.Error(err))
			res.Redis, res.Status = HealthUnavailable, "degraded"
		}
	}
	return res
}
