package seeders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/services"
	apperrors "safety-inspection/pkg/errors"
)

// SeedInitialData creates ADMIN001 and the default top-level areas. Safe to rerun.
func SeedInitialData(ctx context.Context, setup services.SetupServiceInterface, logger *zap.Logger) error {
	res, err := setup.SeedInitialData(ctx)
	if err != nil {
		return fmt.Errorf("initial data: %w", err)
	}
	if res.Status == dto.SetupStatusAlreadyExists {
		logger.Info("Initial data already present", zap.String("admin", res.AdminStaffID))
		return nil
	}
	logger.Info("Initial data created", zap.String("admin", res.AdminStaffID), zap.Strings("areas", res.AreasCreated))
	return nil
}

// SeedSuperAdmin creates one super admin. An existing staff ID is reported, not treated as failure.
func SeedSuperAdmin(ctx context.Context, setup services.SetupServiceInterface, payload dto.CreateUserDTO, logger *zap.Logger) error {
	user, err := setup.CreateSuperAdmin(ctx, payload)
	if errors.Is(err, apperrors.ErrConflict) {
		logger.Warn("Super admin already exists", zap.String("staff_id", payload.StaffID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("super admin %s: %w", payload.StaffID, err)
	}
	logger.Info("Super admin created", zap.String("staff_id", user.StaffID), zap.String("name", user.FullName))
	return nil
}

// SeedSiteAreas adds the room-based top-level areas, skipping names that already exist.
func SeedSiteAreas(ctx context.Context, areas services.AreaServiceInterface, logger *zap.Logger) ([]string, error) {
	var created []string
	for _, a := range siteAreas {
		description := a.Description
		_, err := areas.Create(ctx, dto.CreateAreaDTO{Name: a.Name, Description: &description})
		if errors.Is(err, apperrors.ErrConflict) {
			logger.Debug("Area exists, skipped", zap.String("name", a.Name))
			continue
		}
		if err != nil {
			return created, fmt.Errorf("area %q: %w", a.Name, err)
		}
		created = append(created, a.Name)
	}
	logger.Info("Site areas seeded", zap.Strings("created", created))
	return created, nil
}
