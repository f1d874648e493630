package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/service"
	"safety-inspection/pkg/utils"
)

func TestUserCreate(t *testing.T) {
	store := newMemStore()
	svc := NewUserService(memUserRepo{store}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreateUserDTO{FullName: "Admin", StaffID: "A1", Role: "admin"})
	var httpErr *apperrors.HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "Password is required for admin users", httpErr.Message)

	created, err := svc.Create(ctx, dto.CreateUserDTO{FullName: "Admin", StaffID: "A1", Role: "admin", Password: "secret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "admin", created.Role)
	assert.True(t, created.IsActive)
	stored := store.users[created.ID]
	require.NotNil(t, stored.PasswordHash)
	assert.NoError(t, utils.ComparePasswords(*stored.PasswordHash, "secret-pass"))

	_, err = svc.Create(ctx, dto.CreateUserDTO{FullName: "Other", StaffID: "A1"})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	reporter, err := svc.Create(ctx, dto.CreateUserDTO{FullName: "Reporter", StaffID: "R1"})
	require.NoError(t, err)
	assert.Equal(t, "reporter", reporter.Role)
}

func TestUserUpdateAndActivation(t *testing.T) {
	store := newMemStore()
	svc := NewUserService(memUserRepo{store}, zap.NewNop())
	ctx := context.Background()
	admin := store.addUser(entities.User{FullName: "Admin", StaffID: "A1", Role: entities.RoleAdmin, IsActive: true})
	user := store.addUser(entities.User{FullName: "Worker", StaffID: "W1", Role: entities.RoleReporter, IsActive: true})

	updated, err := svc.Update(ctx, user.ID, dto.UpdateUserDTO{Role: null.StringFrom("admin"), Section: null.StringFrom("Night shift")})
	require.NoError(t, err)
	assert.Equal(t, "admin", updated.Role)
	assert.Equal(t, "Night shift", updated.Section)
	assert.Equal(t, "Worker", updated.FullName)

	_, err = svc.Update(ctx, user.ID, dto.UpdateUserDTO{Role: null.StringFrom("owner")})
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))

	err = svc.Deactivate(ctx, admin.ID, admin.ID)
	var httpErr *apperrors.HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "Cannot deactivate yourself", httpErr.Message)

	require.NoError(t, svc.Deactivate(ctx, admin.ID, user.ID))
	assert.False(t, store.users[user.ID].IsActive)

	activated, err := svc.Activate(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	assert.True(t, errors.Is(svc.Deactivate(ctx, admin.ID, uuid.New()), apperrors.ErrNotFound))
}

func TestRegisterFromTelegram(t *testing.T) {
	store := newMemStore()
	svc := NewUserService(memUserRepo{store}, zap.NewNop())
	ctx := context.Background()

	user, err := svc.RegisterFromTelegram(ctx, dto.TelegramRegistrationDTO{
		TelegramID: 4242,
		FullName:   "Anna Smirnova",
		StaffID:    "EMP12",
		Department: "quality assurance",
		Section:    "Lab",
	})
	require.NoError(t, err)
	assert.Equal(t, "Quality Assurance", user.Department)
	assert.Equal(t, entities.RoleReporter, user.Role)
	assert.False(t, user.HasPassword())

	found, err := svc.GetByTelegramID(ctx, 4242)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.RegisterFromTelegram(ctx, dto.TelegramRegistrationDTO{TelegramID: 1, FullName: "X", StaffID: "EMP13", Department: "Marketing"})
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))
}

func newTestAuthService(t *testing.T, store *memStore) (AuthServiceInterface, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	revocations := repositories.NewTokenRevocationRepository(repositories.NewRedisCacheRepository(client))
	jwtSvc := service.NewJWTService("test-secret", 15*time.Minute, time.Hour)
	return NewAuthService(memUserRepo{store}, revocations, jwtSvc, zap.NewNop()), srv
}

func TestAuthLogin(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestAuthService(t, store)
	ctx := context.Background()

	hash, err := utils.HashPassword("admin123")
	require.NoError(t, err)
	store.addUser(entities.User{FullName: "Admin", StaffID: "ADMIN001", Role: entities.RoleSuperAdmin, IsActive: true, PasswordHash: &hash})
	store.addUser(entities.User{FullName: "Former", StaffID: "OLD1", Role: entities.RoleAdmin, IsActive: false, PasswordHash: &hash})
	store.addUser(entities.User{FullName: "Bot only", StaffID: "EMP1", Role: entities.RoleReporter, IsActive: true})

	res, err := svc.Login(ctx, dto.LoginDTO{StaffID: "ADMIN001", Password: "admin123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, 900, res.ExpiresIn)
	assert.Equal(t, "super_admin", res.User.Role)

	cases := []struct {
		name    string
		payload dto.LoginDTO
		want    error
	}{
		{"wrong password", dto.LoginDTO{StaffID: "ADMIN001", Password: "nope"}, apperrors.ErrInvalidCredentials},
		{"unknown staff id", dto.LoginDTO{StaffID: "NOBODY", Password: "admin123"}, apperrors.ErrInvalidCredentials},
		{"inactive", dto.LoginDTO{StaffID: "OLD1", Password: "admin123"}, apperrors.ErrInvalidCredentials},
		{"no password set", dto.LoginDTO{StaffID: "EMP1", Password: "anything"}, apperrors.ErrPasswordNotSet},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tc.payload)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthRefreshIsSingleUse(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestAuthService(t, store)
	ctx := context.Background()

	hash, err := utils.HashPassword("admin123")
	require.NoError(t, err)
	store.addUser(entities.User{FullName: "Admin", StaffID: "ADMIN001", Role: entities.RoleSuperAdmin, IsActive: true, PasswordHash: &hash})

	login, err := svc.Login(ctx, dto.LoginDTO{StaffID: "ADMIN001", Password: "admin123"})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenIsNotRefresh)

	refreshed, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenRevoked)

	require.NoError(t, svc.Logout(ctx, nil, refreshed.RefreshToken))
	_, err = svc.Refresh(ctx, refreshed.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenRevoked)
}

func TestNotificationSettings(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tg := &fakeTelegram{}
	svc := NewNotificationService(repositories.NewRedisCacheRepository(client), tg, zap.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	settings, err := svc.GetSettings(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, dto.DefaultNotificationSettings(), *settings)

	updated, err := svc.UpdateSettings(ctx, userID, dto.UpdateNotificationSettingsDTO{
		NewFinding:       null.BoolFrom(false),
		DailySummaryTime: null.StringFrom("18:30"),
	})
	require.NoError(t, err)
	assert.False(t, updated.NewFinding)
	assert.True(t, updated.StatusChange)
	assert.Equal(t, "18:30", updated.DailySummaryTime)

	srv.FastForward(365 * 24 * time.Hour)
	settings, err = svc.GetSettings(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, *updated, *settings, "settings do not expire")

	require.NoError(t, srv.Set("notification_settings:"+userID.String(), "{broken"))
	settings, err = svc.GetSettings(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, dto.DefaultNotificationSettings(), *settings)

	err = svc.SendTest(ctx, &authz.Principal{UserID: userID, FullName: "Admin"})
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))

	chatID := int64(777)
	require.NoError(t, svc.SendTest(ctx, &authz.Principal{UserID: userID, FullName: "Admin", TelegramID: &chatID}))
	msgs := tg.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, chatID, msgs[0].ChatID)
}

func TestSetupSeedInitialData(t *testing.T) {
	store := newMemStore()
	users := NewUserService(memUserRepo{store}, zap.NewNop())
	svc := NewSetupService(memUserRepo{store}, memAreaRepo{store}, users, "", "1.0.0", nil, nil, zap.NewNop())
	ctx := context.Background()
	store.addArea("Office", nil)

	res, err := svc.SeedInitialData(ctx)
	require.NoError(t, err)
	assert.Equal(t, dto.SetupStatusCreated, res.Status)
	assert.Equal(t, InitialAdminStaffID, res.AdminStaffID)
	assert.Equal(t, []string{"Production", "Warehouse"}, res.AreasCreated)

	admin, err := memUserRepo{store}.FindByStaffID(ctx, InitialAdminStaffID)
	require.NoError(t, err)
	assert.Equal(t, entities.RoleSuperAdmin, admin.Role)
	assert.NoError(t, utils.ComparePasswords(*admin.PasswordHash, DefaultAdminPassword))

	res, err = svc.SeedInitialData(ctx)
	require.NoError(t, err)
	assert.Equal(t, dto.SetupStatusAlreadyExists, res.Status)
	assert.Empty(t, res.AreasCreated)
}

func TestSetupHealth(t *testing.T) {
	store := newMemStore()
	down := func(context.Context) error { return errors.New("connection refused") }
	up := func(context.Context) error { return nil }

	svc := NewSetupService(memUserRepo{store}, memAreaRepo{store}, nil, "", "1.0.0", up, up, zap.NewNop())
	h := svc.Health(context.Background())
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "1.0.0", h.Version)

	svc = NewSetupService(memUserRepo{store}, memAreaRepo{store}, nil, "", "1.0.0", up, down, zap.NewNop())
	h = svc.Health(context.Background())
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "ok", h.Database)
	assert.Equal(t, "unavailable", h.Redis)
}
