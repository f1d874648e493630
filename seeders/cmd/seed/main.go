package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/repositories"
	"safety-inspection/internal/services"
	"safety-inspection/pkg/config"
	"safety-inspection/pkg/database/migrations"
	"safety-inspection/pkg/database/postgresql"
	applogger "safety-inspection/pkg/logger"
	"safety-inspection/seeders"
)

func main() {
	runMigrations := flag.Bool("migrate", false, "Apply pending migrations")
	runInitial := flag.Bool("initial", false, "Create ADMIN001 and the default areas")
	runSiteAreas := flag.Bool("site-areas", false, "Add the room-based top-level areas")
	runAdmin := flag.Bool("superadmin", false, "Create a super admin from the flags below")
	runAll := flag.Bool("all", false, "Equivalent to -migrate -initial")

	staffID := flag.String("staff-id", "ADMIN001", "Super admin staff ID")
	name := flag.String("name", "Super Admin", "Super admin full name")
	department := flag.String("department", "Administration", "Super admin department")
	section := flag.String("section", "IT", "Super admin section")
	password := flag.String("password", "", "Super admin password (defaults to INITIAL_ADMIN_PASSWORD)")
	flag.Parse()

	if !*runMigrations && !*runInitial && !*runSiteAreas && !*runAdmin && !*runAll {
		fmt.Fprintln(os.Stderr, "No seeder selected. Available flags:")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nExamples:")
		fmt.Fprintln(os.Stderr, "  go run ./seeders/cmd/seed -all")
		fmt.Fprintln(os.Stderr, "  go run ./seeders/cmd/seed -superadmin -staff-id SA-02 -name \"Site Lead\" -password s3cretpass")
		os.Exit(2)
	}

	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File).Named("seed")
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbPool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	if *runAll || *runMigrations {
		if err := migrations.Up(ctx, dbPool); err != nil {
			logger.Fatal("Migrations failed", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}

	userRepo := repositories.NewUserRepository(dbPool, logger)
	areaRepo := repositories.NewAreaRepository(dbPool, logger)
	userService := services.NewUserService(userRepo, logger)
	areaService := services.NewAreaService(areaRepo, userRepo, repositories.NewTxManager(dbPool), logger)
	setupService := services.NewSetupService(userRepo, areaRepo, userService, cfg.App.AdminPassword, cfg.App.Version, dbPool.Ping, nil, logger)

	if *runAll || *runInitial {
		if err := seeders.SeedInitialData(ctx, setupService, logger); err != nil {
			logger.Fatal("Initial data failed", zap.Error(err))
		}
	}

	if *runSiteAreas {
		if _, err := seeders.SeedSiteAreas(ctx, areaService, logger); err != nil {
			logger.Fatal("Site areas failed", zap.Error(err))
		}
	}

	if *runAdmin {
		payload := dto.CreateUserDTO{
			StaffID:    *staffID,
			FullName:   *name,
			Department: *department,
			Section:    *section,
			Password:   *password,
		}
		if err := seeders.SeedSuperAdmin(ctx, setupService, payload, logger); err != nil {
			logger.Fatal("Super admin failed", zap.Error(err))
		}
	}

	logger.Info("Seeding finished")
}
