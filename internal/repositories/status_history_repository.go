package repositories

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"safety-inspection/internal/entities"
)

const statusHistoryTable = "status_history"

var statusHistoryColumns = []string{"id", "finding_id", "old_status", "new_status", "notes", "updated_by", "updated_at"}

// StatusHistoryRepositoryInterface is append-only: there is no update or delete.
type StatusHistoryRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.StatusHistory) error
	ListByFinding(ctx context.Context, findingID uuid.UUID) ([]entities.StatusHistory, error)
}

type StatusHistoryRepository struct {
	storage DB
	logger  *zap.Logger
}

func NewStatusHistoryRepository(storage DB, logger *zap.Logger) StatusHistoryRepositoryInterface {
	return &StatusHistoryRepository{storage: storage, logger: logger}
}

func (r *StatusHistoryRepository) CreateInTx(ctx context.Context, tx pgx.Tx, h *entities.StatusHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	var oldStatus *string
	if h.OldStatus != nil {
		s := string(*h.OldStatus)
		oldStatus = &s
	}
	query, args, err := psql.Insert(statusHistoryTable).Columns(statusHistoryColumns...).
		Values(h.ID, h.FindingID, oldStatus, string(h.NewStatus), h.Notes, h.UpdatedBy, h.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = pick(r.storage, tx).Exec(ctx, query, args...)
	return err
}

// ListByFinding returns the trail oldest first.
func (r *StatusHistoryRepository) ListByFinding(ctx context.Context, findingID uuid.UUID) ([]entities.StatusHistory, error) {
	query, args, err := psql.Select(statusHistoryColumns...).From(statusHistoryTable).
		Where(sq.Eq{"finding_id": findingID}).
		OrderBy("updated_at", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entities.StatusHistory, 0)
	for rows.Next() {
		var (
			h         entities.StatusHistory
			oldStatus *string
			newStatus string
		)
		if err := rows.Scan(&h.ID, &h.FindingID, &oldStatus, &newStatus, &h.Notes, &h.UpdatedBy, &h.UpdatedAt); err != nil {
			return nil, err
		}
		if oldStatus != nil {
			s, err := entities.ParseStatus(*oldStatus)
			if err != nil {
				return nil, err
			}
			h.OldStatus = &s
		}
		if h.NewStatus, err = entities.ParseStatus(newStatus); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
