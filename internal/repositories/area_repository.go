package repositories

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"safety-inspection/internal/entities"
	apperrors "safety-inspection/pkg/errors"
)

const (
	areaTable     = "areas"
	areaNameIndex = "ix_areas_name"
)

var areaColumns = []string{"id", "name", "description", "parent_id", "level", "created_at", "updated_at"}

// descendantsCTE walks the subtree rooted at $1, the root included.
const descendantsCTE = `
WITH RECURSIVE subtree AS (
	SELECT id, name, description, parent_id, level, created_at, updated_at FROM areas WHERE id = $1
	UNION ALL
	SELECT a.id, a.name, a.description, a.parent_id, a.level, a.created_at, a.updated_at
	FROM areas a JOIN subtree s ON a.parent_id = s.id
)`

type AreaFilter struct {
	Level    *int
	ParentID *uuid.UUID
}

type AreaRepositoryInterface interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Area, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*entities.Area, error)
	ExistsByName(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error)
	List(ctx context.Context, filter AreaFilter) ([]entities.Area, error)
	ListUpToLevel(ctx context.Context, maxLevel int) ([]entities.Area, error)
	ListRoots(ctx context.Context, limit uint64) ([]entities.Area, error)
	FindByIDForUpdateInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*entities.Area, error)
	CountChildrenInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error)
	CountFindingsInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error)
	Descendants(ctx context.Context, id uuid.UUID) ([]entities.Area, error)
	DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, area *entities.Area) error
	UpdateInTx(ctx context.Context, tx pgx.Tx, area *entities.Area) error
	ShiftSubtreeLevelsInTx(ctx context.Context, tx pgx.Tx, rootID uuid.UUID, delta int) error
	DeleteInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type AreaRepository struct {
	storage DB
	logger  *zap.Logger
}

func NewAreaRepository(storage DB, logger *zap.Logger) AreaRepositoryInterface {
	return &AreaRepository{storage: storage, logger: logger}
}

func scanArea(row pgx.Row) (*entities.Area, error) {
	var a entities.Area
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &a.ParentID, &a.Level, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func collectAreas(rows pgx.Rows) ([]entities.Area, error) {
	defer rows.Close()
	areas := make([]entities.Area, 0)
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		areas = append(areas, *a)
	}
	return areas, rows.Err()
}

func (r *AreaRepository) selectAreas(ctx context.Context, b sq.SelectBuilder) ([]entities.Area, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAreas(rows)
}

func (r *AreaRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Area, error) {
	query, args, err := psql.Select(areaColumns...).From(areaTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanArea(r.storage.QueryRow(ctx, query, args...))
}

// FindByIDForUpdateInTx row-locks the area. Inserting a child or a finding that
// references it blocks on the lock until tx ends.
func (r *AreaRepository) FindByIDForUpdateInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*entities.Area, error) {
	query, args, err := psql.Select(areaColumns...).From(areaTable).Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, err
	}
	return scanArea(pick(r.storage, tx).QueryRow(ctx, query, args...))
}

func (r *AreaRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*entities.Area, error) {
	out := make(map[uuid.UUID]*entities.Area, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	areas, err := r.selectAreas(ctx, psql.Select(areaColumns...).From(areaTable).Where(sq.Eq{"id": ids}))
	if err != nil {
		return nil, err
	}
	for i := range areas {
		out[areas[i].ID] = &areas[i]
	}
	return out, nil
}

func (r *AreaRepository) ExistsByName(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	b := psql.Select("1").From(areaTable).Where(sq.Eq{"name": name})
	if excludeID != nil {
		b = b.Where(sq.NotEq{"id": *excludeID})
	}
	inner, args, err := b.ToSql()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := r.storage.QueryRow(ctx, "SELECT EXISTS ("+inner+")", args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *AreaRepository) List(ctx context.Context, filter AreaFilter) ([]entities.Area, error) {
	b := psql.Select(areaColumns...).From(areaTable)
	if filter.Level != nil {
		b = b.Where(sq.Eq{"level": *filter.Level})
	}
	if filter.ParentID != nil {
		b = b.Where(sq.Eq{"parent_id": *filter.ParentID})
	}
	return r.selectAreas(ctx, b.OrderBy("level", "name"))
}

// ListUpToLevel returns every area at or above maxLevel, parents before children.
func (r *AreaRepository) ListUpToLevel(ctx context.Context, maxLevel int) ([]entities.Area, error) {
	return r.selectAreas(ctx, psql.Select(areaColumns...).From(areaTable).
		Where(sq.LtOrEq{"level": maxLevel}).
		OrderBy("level", "name"))
}

func (r *AreaRepository) ListRoots(ctx context.Context, limit uint64) ([]entities.Area, error) {
	return r.selectAreas(ctx, psql.Select(areaColumns...).From(areaTable).
		Where(sq.Eq{"level": 1}).
		OrderBy("name").
		Limit(limit))
}

func (r *AreaRepository) count(ctx context.Context, tx pgx.Tx, table string, where sq.Eq) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From(table).Where(where).ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := pick(r.storage, tx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *AreaRepository) CountChildrenInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error) {
	return r.count(ctx, tx, areaTable, sq.Eq{"parent_id": id})
}

func (r *AreaRepository) CountFindingsInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error) {
	return r.count(ctx, tx, findingTable, sq.Eq{"area_id": id})
}

func (r *AreaRepository) Descendants(ctx context.Context, id uuid.UUID) ([]entities.Area, error) {
	rows, err := r.storage.Query(ctx, descendantsCTE+`
SELECT id, name, description, parent_id, level, created_at, updated_at FROM subtree ORDER BY level, name`, id)
	if err != nil {
		return nil, err
	}
	return collectAreas(rows)
}

func (r *AreaRepository) DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.storage.Query(ctx, descendantsCTE+`
SELECT id FROM subtree`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var aid uuid.UUID
		if err := rows.Scan(&aid); err != nil {
			return nil, err
		}
		ids = append(ids, aid)
	}
	return ids, rows.Err()
}

func (r *AreaRepository) Create(ctx context.Context, area *entities.Area) error {
	if area.ID == uuid.Nil {
		area.ID = uuid.New()
	}
	query, args, err := psql.Insert(areaTable).Columns(areaColumns...).
		Values(area.ID, area.Name, area.Description, area.ParentID, area.Level, area.CreatedAt, area.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.storage.Exec(ctx, query, args...); err != nil {
		return r.mapWriteErr(err)
	}
	return nil
}

func (r *AreaRepository) UpdateInTx(ctx context.Context, tx pgx.Tx, area *entities.Area) error {
	query, args, err := psql.Update(areaTable).
		Set("name", area.Name).
		Set("description", area.Description).
		Set("parent_id", area.ParentID).
		Set("level", area.Level).
		Set("updated_at", area.UpdatedAt).
		Where(sq.Eq{"id": area.ID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := pick(r.storage, tx).Exec(ctx, query, args...)
	if err != nil {
		return r.mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ShiftSubtreeLevelsInTx adds delta to the level of every strict descendant of rootID.
func (r *AreaRepository) ShiftSubtreeLevelsInTx(ctx context.Context, tx pgx.Tx, rootID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	_, err := pick(r.storage, tx).Exec(ctx, descendantsCTE+`
UPDATE areas SET level = areas.level + $2, updated_at = NOW()
FROM subtree WHERE areas.id = subtree.id AND areas.id <> $1`, rootID, delta)
	return err
}

func (r *AreaRepository) DeleteInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query, args, err := psql.Delete(areaTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := pick(r.storage, tx).Exec(ctx, query, args...)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return apperrors.NewConflictError("Cannot delete area with findings")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *AreaRepository) mapWriteErr(err error) error {
	if IsUniqueViolation(err, areaNameIndex) {
		return apperrors.NewConflictError("Area with this name already exists")
	}
	if IsForeignKeyViolation(err) {
		return apperrors.NewNotFoundError("Parent area not found")
	}
	r.logger.Error("area write failed", zap.Error(err))
	return err
}
