package repositories

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"safety-inspection/internal/entities"
)

const photoTable = "photos"

var photoColumns = []string{"id", "finding_id", "s3_key", "original_filename", "mime_type", "size", "uploaded_at"}

type PhotoRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, photo *entities.Photo) error
	ListByFinding(ctx context.Context, findingID uuid.UUID) ([]entities.Photo, error)
}

type PhotoRepository struct {
	storage DB
	logger  *zap.Logger
}

func NewPhotoRepository(storage DB, logger *zap.Logger) PhotoRepositoryInterface {
	return &PhotoRepository{storage: storage, logger: logger}
}

func (r *PhotoRepository) CreateInTx(ctx context.Context, tx pgx.Tx, p *entities.Photo) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query, args, err := psql.Insert(photoTable).Columns(photoColumns...).
		Values(p.ID, p.FindingID, p.S3Key, p.OriginalFilename, p.MimeType, p.Size, p.UploadedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = pick(r.storage, tx).Exec(ctx, query, args...)
	return err
}

func (r *PhotoRepository) ListByFinding(ctx context.Context, findingID uuid.UUID) ([]entities.Photo, error) {
	query, args, err := psql.Select(photoColumns...).From(photoTable).
		Where(sq.Eq{"finding_id": findingID}).
		OrderBy("uploaded_at").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := make([]entities.Photo, 0)
	for rows.Next() {
		var p entities.Photo
		if err := rows.Scan(&p.ID, &p.FindingID, &p.S3Key, &p.OriginalFilename, &p.MimeType, &p.Size, &p.UploadedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}
