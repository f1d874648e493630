package repositories

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"safety-inspection/internal/entities"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/types"
)

const (
	userTable        = "users"
	userStaffIDIndex = "users_staff_id_key"
	userTelegramIdx  = "users_telegram_id_key"
)

var userColumns = []string{
	"id", "telegram_id", "username", "full_name", "staff_id", "department", "section",
	"role", "is_active", "password_hash", "created_at", "updated_at",
}

type UserFilter struct {
	Search     string
	Role       *entities.Role
	Department string
	IsActive   *bool
	types.Pagination
}

type UserRepositoryInterface interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	FindByStaffID(ctx context.Context, staffID string) (*entities.User, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*entities.User, error)
	List(ctx context.Context, filter UserFilter) ([]entities.User, uint64, error)
	ListNotifiableAdmins(ctx context.Context) ([]entities.User, error)
	Create(ctx context.Context, user *entities.User) error
	Update(ctx context.Context, user *entities.User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type UserRepository struct {
	storage DB
	logger  *zap.Logger
}

func NewUserRepository(storage DB, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var (
		u    entities.User
		role string
	)
	err := row.Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.FullName, &u.StaffID, &u.Department, &u.Section,
		&role, &u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if u.Role, err = entities.ParseRole(role); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) findOne(ctx context.Context, where sq.Sqlizer) (*entities.User, error) {
	query, args, err := psql.Select(userColumns...).From(userTable).Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	return scanUser(r.storage.QueryRow(ctx, query, args...))
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return r.findOne(ctx, sq.Eq{"id": id})
}

func (r *UserRepository) FindByStaffID(ctx context.Context, staffID string) (*entities.User, error) {
	return r.findOne(ctx, sq.Eq{"staff_id": staffID})
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error) {
	return r.findOne(ctx, sq.Eq{"telegram_id": telegramID})
}

// FindByIDs resolves a set of users in one round trip; missing ids are simply absent.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*entities.User, error) {
	out := make(map[uuid.UUID]*entities.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := psql.Select(userColumns...).From(userTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, err
	}
	users, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (r *UserRepository) List(ctx context.Context, filter UserFilter) ([]entities.User, uint64, error) {
	where := sq.And{}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		where = append(where, sq.Or{sq.ILike{"full_name": pattern}, sq.ILike{"staff_id": pattern}})
	}
	if filter.Role != nil {
		where = append(where, sq.Eq{"role": string(*filter.Role)})
	}
	if filter.Department != "" {
		where = append(where, sq.Eq{"department": filter.Department})
	}
	if filter.IsActive != nil {
		where = append(where, sq.Eq{"is_active": *filter.IsActive})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(userTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	if total == 0 {
		return []entities.User{}, 0, nil
	}

	query, args, err := psql.Select(userColumns...).From(userTable).Where(where).
		OrderBy("created_at DESC", "staff_id").
		Limit(filter.Limit()).Offset(filter.Offset()).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	users, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListNotifiableAdmins returns active admins that can be reached on Telegram.
func (r *UserRepository) ListNotifiableAdmins(ctx context.Context) ([]entities.User, error) {
	query, args, err := psql.Select(userColumns...).From(userTable).
		Where(sq.Eq{"role": []string{string(entities.RoleAdmin), string(entities.RoleSuperAdmin)}}).
		Where(sq.Eq{"is_active": true}).
		Where(sq.NotEq{"telegram_id": nil}).
		OrderBy("staff_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *UserRepository) query(ctx context.Context, query string, args ...interface{}) ([]entities.User, error) {
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]entities.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query, args, err := psql.Insert(userTable).
		Columns(userColumns...).
		Values(
			user.ID, user.TelegramID, user.Username, user.FullName, user.StaffID, user.Department, user.Section,
			string(user.Role), user.IsActive, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
		).ToSql()
	if err != nil {
		return err
	}
	if _, err := r.storage.Exec(ctx, query, args...); err != nil {
		return r.mapWriteErr(err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	query, args, err := psql.Update(userTable).
		Set("telegram_id", user.TelegramID).
		Set("username", user.Username).
		Set("full_name", user.FullName).
		Set("department", user.Department).
		Set("section", user.Section).
		Set("role", string(user.Role)).
		Set("is_active", user.IsActive).
		Set("password_hash", user.PasswordHash).
		Set("updated_at", user.UpdatedAt).
		Where(sq.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return r.mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query, args, err := psql.Update(userTable).
		Set("is_active", active).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepository) mapWriteErr(err error) error {
	switch {
	case IsUniqueViolation(err, userStaffIDIndex):
		return apperrors.NewHttpError(http.StatusBadRequest, "User with this staff ID already exists", apperrors.ErrStaffIDTaken, nil)
	case IsUniqueViolation(err, userTelegramIdx):
		return apperrors.NewHttpError(http.StatusBadRequest, "This Telegram account is already registered", apperrors.ErrTelegramTaken, nil)
	case IsUniqueViolation(err, ""):
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	}
	r.logger.Error("user write failed", zap.Error(err))
	return err
}
