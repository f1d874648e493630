package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"safety-inspection/internal/entities"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/types"
)

const (
	findingTable         = "findings"
	findingReportIDIndex = "ix_findings_report_id"
)

// ErrReportIDTaken signals a lost race on the report id; callers re-allocate and retry.
var ErrReportIDTaken = errors.New("report id already taken")

var findingColumns = []string{
	"id", "report_id", "reporter_id", "area_id", "description", "severity", "status",
	"location", "reported_at", "closed_at", "assigned_to", "created_at", "updated_at",
}

type FindingFilter struct {
	AreaIDs    []uuid.UUID
	Severity   *entities.Severity
	Status     *entities.Status
	ReporterID *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
	types.Pagination
}

// FindingCount is one cell of the summary aggregation.
type FindingCount struct {
	AreaID   uuid.UUID
	AreaName string
	Severity entities.Severity
	Status   entities.Status
	Count    int64
}

type FindingRepositoryInterface interface {
	LastReportID(ctx context.Context, tx pgx.Tx, prefix string) (string, error)
	CreateInTx(ctx context.Context, tx pgx.Tx, finding *entities.Finding) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Finding, error)
	FindByIDForUpdateInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*entities.Finding, error)
	UpdateStatusInTx(ctx context.Context, tx pgx.Tx, finding *entities.Finding) error
	Assign(ctx context.Context, id uuid.UUID, assignee *uuid.UUID, at time.Time) error
	List(ctx context.Context, filter FindingFilter) ([]entities.Finding, uint64, error)
	ListAll(ctx context.Context, filter FindingFilter) ([]entities.Finding, error)
	RecentByReporter(ctx context.Context, reporterID uuid.UUID, limit uint64) ([]entities.Finding, error)
	Counts(ctx context.Context, from, to time.Time) ([]FindingCount, error)
}

type FindingRepository struct {
	storage DB
	logger  *zap.Logger
}

func NewFindingRepository(storage DB, logger *zap.Logger) FindingRepositoryInterface {
	return &FindingRepository{storage: storage, logger: logger}
}

func scanFinding(row pgx.Row) (*entities.Finding, error) {
	var (
		f                entities.Finding
		severity, status string
	)
	err := row.Scan(
		&f.ID, &f.ReportID, &f.ReporterID, &f.AreaID, &f.Description, &severity, &status,
		&f.Location, &f.ReportedAt, &f.ClosedAt, &f.AssignedTo, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if f.Severity, err = entities.ParseSeverity(severity); err != nil {
		return nil, err
	}
	if f.Status, err = entities.ParseStatus(status); err != nil {
		return nil, err
	}
	return &f, nil
}

func collectFindings(rows pgx.Rows) ([]entities.Finding, error) {
	defer rows.Close()
	out := make([]entities.Finding, 0)
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// LastReportID returns the highest report id starting with prefix, or "" when there is none.
// Length is compared first so that sequences past 9999 still sort above shorter ones.
func (r *FindingRepository) LastReportID(ctx context.Context, tx pgx.Tx, prefix string) (string, error) {
	query, args, err := psql.Select("report_id").From(findingTable).
		Where(sq.Like{"report_id": prefix + "%"}).
		OrderBy("length(report_id) DESC", "report_id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", err
	}
	var last string
	err = pick(r.storage, tx).QueryRow(ctx, query, args...).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return last, err
}

func (r *FindingRepository) CreateInTx(ctx context.Context, tx pgx.Tx, f *entities.Finding) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	query, args, err := psql.Insert(findingTable).Columns(findingColumns...).
		Values(
			f.ID, f.ReportID, f.ReporterID, f.AreaID, f.Description, string(f.Severity), string(f.Status),
			f.Location, f.ReportedAt, f.ClosedAt, f.AssignedTo, f.CreatedAt, f.UpdatedAt,
		).ToSql()
	if err != nil {
		return err
	}
	if _, err := pick(r.storage, tx).Exec(ctx, query, args...); err != nil {
		if IsUniqueViolation(err, findingReportIDIndex) {
			return ErrReportIDTaken
		}
		if IsForeignKeyViolation(err) {
			return apperrors.NewNotFoundError("Area or reporter not found")
		}
		return fmt.Errorf("insert finding: %w", err)
	}
	return nil
}

func (r *FindingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Finding, error) {
	query, args, err := psql.Select(findingColumns...).From(findingTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanFinding(r.storage.QueryRow(ctx, query, args...))
}

func (r *FindingRepository) FindByIDForUpdateInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*entities.Finding, error) {
	query, args, err := psql.Select(findingColumns...).From(findingTable).Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, err
	}
	return scanFinding(pick(r.storage, tx).QueryRow(ctx, query, args...))
}

func (r *FindingRepository) UpdateStatusInTx(ctx context.Context, tx pgx.Tx, f *entities.Finding) error {
	query, args, err := psql.Update(findingTable).
		Set("status", string(f.Status)).
		Set("closed_at", f.ClosedAt).
		Set("updated_at", f.UpdatedAt).
		Where(sq.Eq{"id": f.ID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := pick(r.storage, tx).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *FindingRepository) Assign(ctx context.Context, id uuid.UUID, assignee *uuid.UUID, at time.Time) error {
	query, args, err := psql.Update(findingTable).
		Set("assigned_to", assignee).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return apperrors.NewNotFoundError("Assignee not found")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (f FindingFilter) where() sq.And {
	where := sq.And{}
	if len(f.AreaIDs) > 0 {
		where = append(where, sq.Eq{"area_id": f.AreaIDs})
	}
	if f.Severity != nil {
		where = append(where, sq.Eq{"severity": string(*f.Severity)})
	}
	if f.Status != nil {
		where = append(where, sq.Eq{"status": string(*f.Status)})
	}
	if f.ReporterID != nil {
		where = append(where, sq.Eq{"reporter_id": *f.ReporterID})
	}
	if f.DateFrom != nil {
		where = append(where, sq.GtOrEq{"reported_at": *f.DateFrom})
	}
	if f.DateTo != nil {
		where = append(where, sq.LtOrEq{"reported_at": *f.DateTo})
	}
	return where
}

func (r *FindingRepository) List(ctx context.Context, filter FindingFilter) ([]entities.Finding, uint64, error) {
	where := filter.where()

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(findingTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count findings: %w", err)
	}
	if total == 0 {
		return []entities.Finding{}, 0, nil
	}

	query, args, err := psql.Select(findingColumns...).From(findingTable).Where(where).
		OrderBy("reported_at DESC", "report_id DESC").
		Limit(filter.Limit()).Offset(filter.Offset()).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectFindings(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll applies the filter without paging, for exports.
func (r *FindingRepository) ListAll(ctx context.Context, filter FindingFilter) ([]entities.Finding, error) {
	query, args, err := psql.Select(findingColumns...).From(findingTable).Where(filter.where()).
		OrderBy("reported_at DESC", "report_id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectFindings(rows)
}

func (r *FindingRepository) RecentByReporter(ctx context.Context, reporterID uuid.UUID, limit uint64) ([]entities.Finding, error) {
	query, args, err := psql.Select(findingColumns...).From(findingTable).
		Where(sq.Eq{"reporter_id": reporterID}).
		OrderBy("reported_at DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectFindings(rows)
}

// Counts groups findings reported in [from, to] by area, severity and status.
func (r *FindingRepository) Counts(ctx context.Context, from, to time.Time) ([]FindingCount, error) {
	query, args, err := psql.Select("a.id", "a.name", "f.severity", "f.status", "COUNT(*)").
		From("findings f").
		Join("areas a ON a.id = f.area_id").
		Where(sq.GtOrEq{"f.reported_at": from}).
		Where(sq.LtOrEq{"f.reported_at": to}).
		GroupBy("a.id", "a.name", "f.severity", "f.status").
		OrderBy("a.name").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]FindingCount, 0)
	for rows.Next() {
		var (
			c                FindingCount
			severity, status string
		)
		if err := rows.Scan(&c.AreaID, &c.AreaName, &severity, &status, &c.Count); err != nil {
			return nil, err
		}
		if c.Severity, err = entities.ParseSeverity(severity); err != nil {
			return nil, err
		}
		if c.Status, err = entities.ParseStatus(status); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
