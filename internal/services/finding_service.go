package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/events"
	"safety-inspection/internal/repositories"
	"safety-inspection/pkg/api"
	"safety-inspection/pkg/config"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/eventbus"
	"safety-inspection/pkg/filestorage"
	"safety-inspection/pkg/validation"
)

const (
	FindingPageSizeDefault = 50
	FindingPageSizeMax     = 100
	MaxReportIDAttempts    = 5
	MaxStatusNotesLength   = 2000
	MaxDescriptionLength   = 5000
	RecentReportsLimit     = 5
)

var errFindingNotFound = apperrors.NewNotFoundError("Finding not found")

// PhotoUpload is a photo that has not been stored yet.
type PhotoUpload struct {
	Content     io.Reader
	Size        int64
	FileName    string
	ContentType string
}

type CreateFindingCommand struct {
	ReporterID  uuid.UUID
	AreaID      uuid.UUID
	Description string
	Severity    entities.Severity
	Location    *string
	Photos      []PhotoUpload
}

type FindingListQuery struct {
	AreaID     *uuid.UUID
	Severity   *entities.Severity
	Status     *entities.Status
	ReporterID *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
}

type FindingServiceInterface interface {
	Create(ctx context.Context, cmd CreateFindingCommand) (*entities.Finding, error)
	List(ctx context.Context, q FindingListQuery) (*dto.FindingListDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.FindingDetailDTO, error)
	UpdateStatus(ctx context.Context, actor *authz.Principal, id uuid.UUID, payload dto.UpdateFindingStatusDTO) (*dto.FindingDetailDTO, error)
	Assign(ctx context.Context, id uuid.UUID, assignee *uuid.UUID) (*dto.FindingDetailDTO, error)
	Summary(ctx context.Context, from, to *time.Time) (*dto.SummaryDTO, error)
	ExportSummaryXLSX(ctx context.Context, from, to *time.Time) ([]byte, error)
	ExportListXLSX(ctx context.Context, q FindingListQuery) ([]byte, error)
	RecentByReporter(ctx context.Context, reporterID uuid.UUID, limit int) ([]entities.Finding, error)
}

type FindingService struct {
	findingRepo  repositories.FindingRepositoryInterface
	photoRepo    repositories.PhotoRepositoryInterface
	historyRepo  repositories.StatusHistoryRepositoryInterface
	userRepo     repositories.UserRepositoryInterface
	areaRepo     repositories.AreaRepositoryInterface
	txManager    repositories.TxManagerInterface
	storage      filestorage.FileStorageInterface
	publisher    eventbus.Publisher
	reportPrefix string
	logger       *zap.Logger
	now          func() time.Time
}

func NewFindingService(
	findingRepo repositories.FindingRepositoryInterface,
	photoRepo repositories.PhotoRepositoryInterface,
	historyRepo repositories.StatusHistoryRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	areaRepo repositories.AreaRepositoryInterface,
	txManager repositories.TxManagerInterface,
	storage filestorage.FileStorageInterface,
	publisher eventbus.Publisher,
	reportPrefix string,
	logger *zap.Logger,
) *FindingService {
	if reportPrefix == "" {
		reportPrefix = "SF"
	}
	return &FindingService{
		findingRepo:  findingRepo,
		photoRepo:    photoRepo,
		historyRepo:  historyRepo,
		userRepo:     userRepo,
		areaRepo:     areaRepo,
		txManager:    txManager,
		storage:      storage,
		publisher:    publisher,
		reportPrefix: reportPrefix,
		logger:       logger,
		now:          time.Now,
	}
}

// ReportIDPrefix is "<prefix>-<year>-", the part shared by all ids of a year.
func ReportIDPrefix(prefix string, year int) string {
	return fmt.Sprintf("%s-%04d-", prefix, year)
}

// NextReportID increments the sequence of last, or starts at 0001 when last is empty or unparsable.
func NextReportID(yearPrefix, last string) string {
	next := 1
	if last != "" {
		if seq, err := strconv.Atoi(last[strings.LastIndex(last, "-")+1:]); err == nil && seq >= 0 {
			next = seq + 1
		}
	}
	return fmt.Sprintf("%s%04d", yearPrefix, next)
}

func (s *FindingService) Create(ctx context.Context, cmd CreateFindingCommand) (*entities.Finding, error) {
	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		return nil, apperrors.NewBadRequestError("Description is required")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("Description must be at most %d characters", MaxDescriptionLength))
	}
	if cmd.Severity == "" {
		cmd.Severity = entities.SeverityMedium
	}
	if _, err := entities.ParseSeverity(string(cmd.Severity)); err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}

	reporter, err := s.userRepo.FindByID(ctx, cmd.ReporterID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Reporter not found")
		}
		return nil, err
	}
	if !reporter.IsActive {
		return nil, apperrors.ErrInactiveUser
	}
	area, err := s.areaRepo.FindByID(ctx, cmd.AreaID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errAreaNotFound
		}
		return nil, err
	}

	photos, err := s.uploadPhotos(ctx, cmd.Photos)
	if err != nil {
		return nil, err
	}

	now := s.now()
	finding := &entities.Finding{
		ReporterID:  reporter.ID,
		AreaID:      area.ID,
		Description: description,
		Severity:    cmd.Severity,
		Status:      entities.StatusOpen,
		Location:    cmd.Location,
		ReportedAt:  now,
	}
	finding.CreatedAt, finding.UpdatedAt = now, now

	if err := s.insertWithReportID(ctx, finding, photos); err != nil {
		s.discardPhotos(ctx, photos)
		return nil, err
	}

	s.logger.Info("Finding created",
		zap.String("report_id", finding.ReportID),
		zap.String("reporter_id", reporter.ID.String()),
		zap.Int("photos", len(photos)),
	)
	s.publisher.Publish(ctx, events.FindingCreatedEvent{
		Finding:    *finding,
		Reporter:   *reporter,
		AreaName:   area.Name,
		PhotoCount: len(photos),
	})
	return finding, nil
}

// insertWithReportID allocates the next report id and writes the finding, its first history
// row and its photos in one transaction. A lost race on the id is retried with a fresh read.
func (s *FindingService) insertWithReportID(ctx context.Context, finding *entities.Finding, photos []entities.Photo) error {
	yearPrefix := ReportIDPrefix(s.reportPrefix, finding.ReportedAt.Year())

	for attempt := 1; attempt <= MaxReportIDAttempts; attempt++ {
		finding.ID = uuid.New()
		err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
			last, err := s.findingRepo.LastReportID(ctx, tx, yearPrefix)
			if err != nil {
				return err
			}
			finding.ReportID = NextReportID(yearPrefix, last)

			if err := s.findingRepo.CreateInTx(ctx, tx, finding); err != nil {
				return err
			}

			note := entities.InitialHistoryNote
			if err := s.historyRepo.CreateInTx(ctx, tx, &entities.StatusHistory{
				ID:        uuid.New(),
				FindingID: finding.ID,
				NewStatus: entities.StatusOpen,
				Notes:     &note,
				UpdatedBy: finding.ReporterID,
				UpdatedAt: finding.ReportedAt,
			}); err != nil {
				return err
			}

			for i := range photos {
				photos[i].ID = uuid.New()
				photos[i].FindingID = finding.ID
				if err := s.photoRepo.CreateInTx(ctx, tx, &photos[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrReportIDTaken) {
			return err
		}
		s.logger.Warn("Report id taken, retrying",
			zap.String("report_id", finding.ReportID),
			zap.Int("attempt", attempt),
		)
	}
	return apperrors.ErrRetryExhausted
}

// uploadPhotos stores every photo or none: on failure the ones already stored are removed.
func (s *FindingService) uploadPhotos(ctx context.Context, uploads []PhotoUpload) ([]entities.Photo, error) {
	checked := make([]PhotoUpload, len(uploads))
	for i, u := range uploads {
		content, sniffed, err := validation.ValidateFile(u.Content, u.Size, config.FindingPhotoRules)
		if err != nil {
			return nil, err
		}
		u.Content = content
		if u.ContentType == "" {
			u.ContentType = sniffed
		}
		checked[i] = u
	}

	photos := make([]entities.Photo, 0, len(checked))
	for _, u := range checked {
		contentType := filestorage.DetectContentType(u.ContentType, u.FileName)
		key, err := s.storage.Save(ctx, u.Content, u.Size, u.FileName, contentType, config.FindingPhotoRules.PathPrefix)
		if err != nil {
			s.discardPhotos(ctx, photos)
			s.logger.Error("Photo upload failed", zap.String("file", u.FileName), zap.Error(err))
			return nil, fmt.Errorf("upload photo: %w: %w", apperrors.ErrStorage, err)
		}
		photos = append(photos, entities.Photo{
			S3Key:            key,
			OriginalFilename: u.FileName,
			MimeType:         contentType,
			Size:             u.Size,
			UploadedAt:       s.now(),
		})
	}
	return photos, nil
}

func (s *FindingService) discardPhotos(ctx context.Context, photos []entities.Photo) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, p := range photos {
		if err := s.storage.Delete(cleanupCtx, p.S3Key); err != nil {
			s.logger.Error("Failed to delete orphaned photo", zap.String("key", p.S3Key), zap.Error(err))
		}
	}
}

func (s *FindingService) toFilter(ctx context.Context, q FindingListQuery) (repositories.FindingFilter, bool, error) {
	filter := repositories.FindingFilter{
		Severity:   q.Severity,
		Status:     q.Status,
		ReporterID: q.ReporterID,
		DateFrom:   q.DateFrom,
		DateTo:     q.DateTo,
	}
	filter.Page, filter.PageSize = q.Page, q.PageSize
	if q.AreaID != nil {
		ids, err := s.areaRepo.DescendantIDs(ctx, *q.AreaID)
		if err != nil {
			return filter, false, err
		}
		if len(ids) == 0 {
			return filter, false, nil
		}
		filter.AreaIDs = ids
	}
	return filter, true, nil
}

func (s *FindingService) List(ctx context.Context, q FindingListQuery) (*dto.FindingListDTO, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = FindingPageSizeDefault
	}
	if q.PageSize > FindingPageSizeMax {
		return nil, apperrors.NewInvalidInputError("page_size must be between 1 and %d", FindingPageSizeMax)
	}

	res := &dto.FindingListDTO{Items: []dto.FindingDTO{}, Page: q.Page, PageSize: q.PageSize}

	filter, ok, err := s.toFilter(ctx, q)
	if err != nil || !ok {
		return res, err
	}
	findings, total, err := s.findingRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items, err := s.hydrate(ctx, findings)
	if err != nil {
		return nil, err
	}
	res.Items = items
	res.Total = total
	res.TotalPages = api.TotalPages(total, q.PageSize)
	return res, nil
}

// hydrate attaches reporter, assignee and area references with one lookup per table.
func (s *FindingService) hydrate(ctx context.Context, findings []entities.Finding) ([]dto.FindingDTO, error) {
	userIDs := make([]uuid.UUID, 0, len(findings)*2)
	areaIDs := make([]uuid.UUID, 0, len(findings))
	for _, f := range findings {
		userIDs = append(userIDs, f.ReporterID)
		if f.AssignedTo != nil {
			userIDs = append(userIDs, *f.AssignedTo)
		}
		areaIDs = append(areaIDs, f.AreaID)
	}

	users, err := s.userRepo.FindByIDs(ctx, uniqueIDs(userIDs))
	if err != nil {
		return nil, err
	}
	areas, err := s.areaRepo.FindByIDs(ctx, uniqueIDs(areaIDs))
	if err != nil {
		return nil, err
	}

	out := make([]dto.FindingDTO, 0, len(findings))
	for i := range findings {
		f := &findings[i]
		item := toFindingDTO(f)
		item.Reporter = toShortUserDTO(users[f.ReporterID])
		if f.AssignedTo != nil {
			item.Assignee = toShortUserDTO(users[*f.AssignedTo])
		}
		if a := areas[f.AreaID]; a != nil {
			item.Area = &dto.ShortAreaDTO{ID: a.ID, Name: a.Name, Level: a.Level}
		}
		out = append(out, item)
	}
	return out, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *FindingService) Get(ctx context.Context, id uuid.UUID) (*dto.FindingDetailDTO, error) {
	finding, err := s.findingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errFindingNotFound
		}
		return nil, err
	}

	items, err := s.hydrate(ctx, []entities.Finding{*finding})
	if err != nil {
		return nil, err
	}
	detail := &dto.FindingDetailDTO{FindingDTO: items[0]}
	if detail.Area != nil {
		if detail.Area.FullPath, err = s.areaFullPath(ctx, finding.AreaID); err != nil {
			return nil, err
		}
	}

	photos, err := s.photoRepo.ListByFinding(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Photos = make([]dto.PhotoDTO, 0, len(photos))
	for _, p := range photos {
		url, err := s.storage.URL(ctx, p.S3Key)
		if err != nil {
			s.logger.Warn("Failed to sign photo url", zap.String("key", p.S3Key), zap.Error(err))
		}
		detail.Photos = append(detail.Photos, dto.PhotoDTO{
			ID:               p.ID,
			OriginalFilename: p.OriginalFilename,
			MimeType:         p.MimeType,
			Size:             p.Size,
			URL:              url,
			UploadedAt:       p.UploadedAt,
		})
	}

	history, err := s.historyRepo.ListByFinding(ctx, id)
	if err != nil {
		return nil, err
	}
	updaterIDs := make([]uuid.UUID, 0, len(history))
	for _, h := range history {
		updaterIDs = append(updaterIDs, h.UpdatedBy)
	}
	updaters, err := s.userRepo.FindByIDs(ctx, uniqueIDs(updaterIDs))
	if err != nil {
		return nil, err
	}
	detail.History = make([]dto.StatusHistoryDTO, 0, len(history))
	for _, h := range history {
		detail.History = append(detail.History, dto.StatusHistoryDTO{
			ID:        h.ID,
			OldStatus: statusPtrString(h.OldStatus),
			NewStatus: string(h.NewStatus),
			Notes:     h.Notes,
			UpdatedBy: h.UpdatedBy,
			Updater:   toShortUserDTO(updaters[h.UpdatedBy]),
			UpdatedAt: h.UpdatedAt,
		})
	}
	return detail, nil
}

func (s *FindingService) areaFullPath(ctx context.Context, areaID uuid.UUID) (string, error) {
	known := make(map[uuid.UUID]*entities.Area, entities.MaxAreaLevel)
	next := &areaID
	for next != nil && len(known) < entities.MaxAreaLevel {
		a, err := s.areaRepo.FindByID(ctx, *next)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				break
			}
			return "", err
		}
		known[a.ID] = a
		next = a.ParentID
	}
	return areaPath(areaID, known), nil
}

// UpdateStatus changes the status and appends the history row in one transaction.
// Any status may follow any other.
func (s *FindingService) UpdateStatus(ctx context.Context, actor *authz.Principal, id uuid.UUID, payload dto.UpdateFindingStatusDTO) (*dto.FindingDetailDTO, error) {
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}
	next, err := entities.ParseStatus(payload.Status)
	if err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}
	if payload.Notes != nil && utf8.RuneCountInString(*payload.Notes) > MaxStatusNotesLength {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("Notes must be at most %d characters", MaxStatusNotesLength))
	}

	var (
		finding *entities.Finding
		old     entities.Status
		now     = s.now()
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		f, err := s.findingRepo.FindByIDForUpdateInTx(ctx, tx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return errFindingNotFound
			}
			return err
		}
		old = f.ApplyStatus(next, now)
		if err := s.findingRepo.UpdateStatusInTx(ctx, tx, f); err != nil {
			return err
		}
		prev := old
		if err := s.historyRepo.CreateInTx(ctx, tx, &entities.StatusHistory{
			ID:        uuid.New(),
			FindingID: f.ID,
			OldStatus: &prev,
			NewStatus: next,
			Notes:     payload.Notes,
			UpdatedBy: actor.UserID,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		finding = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Finding status changed",
		zap.String("report_id", finding.ReportID),
		zap.String("from", string(old)),
		zap.String("to", string(next)),
		zap.String("actor", actor.StaffID),
	)
	s.publisher.Publish(ctx, events.FindingStatusChangedEvent{
		Finding:   *finding,
		OldStatus: old,
		NewStatus: next,
		Notes:     payload.Notes,
		ActorID:   actor.UserID,
		ActorName: actor.FullName,
		ChangedAt: now,
	})
	return s.Get(ctx, id)
}

// Assign sets or clears the assignee. It does not touch the status history.
func (s *FindingService) Assign(ctx context.Context, id uuid.UUID, assignee *uuid.UUID) (*dto.FindingDetailDTO, error) {
	if _, err := s.findingRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errFindingNotFound
		}
		return nil, err
	}
	if assignee != nil {
		if _, err := s.userRepo.FindByID(ctx, *assignee); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("User not found")
			}
			return nil, err
		}
	}
	if err := s.findingRepo.Assign(ctx, id, assignee, s.now()); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *FindingService) RecentByReporter(ctx context.Context, reporterID uuid.UUID, limit int) ([]entities.Finding, error) {
	if limit <= 0 {
		limit = RecentReportsLimit
	}
	return s.findingRepo.RecentByReporter(ctx, reporterID, uint64(limit))
}

var _ FindingServiceInterface = (*FindingService)(nil)
