package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	apperrors "safety-inspection/pkg/errors"
)

const (
	TreeDepthDefault = 2
	BotAreaLimit     = 10
)

var (
	errAreaNotFound    = apperrors.NewNotFoundError("Area not found")
	errParentNotFound  = apperrors.NewNotFoundError("Parent area not found")
	errAreaTooDeep     = apperrors.NewBadRequestError("Cannot create area deeper than 3 levels")
	errAreaNameTaken   = apperrors.NewConflictError("Area with this name already exists")
	errAreaHasChildren = apperrors.NewBadRequestError("Cannot delete area with child areas. Delete children first.")
	errAreaHasFindings = apperrors.NewBadRequestError("Cannot delete area with findings")
)

type AreaServiceInterface interface {
	List(ctx context.Context, filter repositories.AreaFilter) ([]dto.AreaDTO, error)
	Tree(ctx context.Context, depth int) ([]dto.AreaTreeDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.AreaDTO, error)
	Create(ctx context.Context, payload dto.CreateAreaDTO) (*dto.AreaDTO, error)
	Update(ctx context.Context, id uuid.UUID, payload dto.UpdateAreaDTO) (*dto.AreaDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Descendants(ctx context.Context, id uuid.UUID) ([]dto.AreaDTO, error)
	DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	ListRoots(ctx context.Context, limit int) ([]entities.Area, error)
	AssignAdmin(ctx context.Context, areaID, userID uuid.UUID) error
}

type AreaService struct {
	areaRepo  repositories.AreaRepositoryInterface
	userRepo  repositories.UserRepositoryInterface
	txManager repositories.TxManagerInterface
	logger    *zap.Logger
	now       func() time.Time
}

func NewAreaService(
	areaRepo repositories.AreaRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	txManager repositories.TxManagerInterface,
	logger *zap.Logger,
) AreaServiceInterface {
	return &AreaService{
		areaRepo:  areaRepo,
		userRepo:  userRepo,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *AreaService) List(ctx context.Context, filter repositories.AreaFilter) ([]dto.AreaDTO, error) {
	areas, err := s.areaRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AreaDTO, 0, len(areas))
	for i := range areas {
		out = append(out, toAreaDTO(&areas[i]))
	}
	return out, nil
}

// ClampTreeDepth maps a requested depth into 1..MaxAreaLevel, 0 meaning the default.
func ClampTreeDepth(depth int) int {
	switch {
	case depth == 0:
		return TreeDepthDefault
	case depth < 1:
		return 1
	case depth > entities.MaxAreaLevel:
		return entities.MaxAreaLevel
	}
	return depth
}

// Tree returns the level-1 areas with children nested down to depth levels.
func (s *AreaService) Tree(ctx context.Context, depth int) ([]dto.AreaTreeDTO, error) {
	depth = ClampTreeDepth(depth)
	areas, err := s.areaRepo.ListUpToLevel(ctx, depth)
	if err != nil {
		return nil, err
	}
	return buildAreaTree(areas), nil
}

func buildAreaTree(areas []entities.Area) []dto.AreaTreeDTO {
	children := make(map[uuid.UUID][]*entities.Area)
	var roots []*entities.Area
	for i := range areas {
		a := &areas[i]
		if a.ParentID == nil {
			roots = append(roots, a)
			continue
		}
		children[*a.ParentID] = append(children[*a.ParentID], a)
	}

	var expand func(a *entities.Area) dto.AreaTreeDTO
	expand = func(a *entities.Area) dto.AreaTreeDTO {
		node := dto.AreaTreeDTO{AreaDTO: toAreaDTO(a), Children: make([]dto.AreaTreeDTO, 0, len(children[a.ID]))}
		for _, c := range children[a.ID] {
			node.Children = append(node.Children, expand(c))
		}
		return node
	}

	out := make([]dto.AreaTreeDTO, 0, len(roots))
	for _, r := range roots {
		out = append(out, expand(r))
	}
	return out
}

func (s *AreaService) find(ctx context.Context, id uuid.UUID) (*entities.Area, error) {
	area, err := s.areaRepo.FindByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, errAreaNotFound
	}
	return area, err
}

func (s *AreaService) Get(ctx context.Context, id uuid.UUID) (*dto.AreaDTO, error) {
	area, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	res := toAreaDTO(area)
	if res.FullPath, err = s.path(ctx, area); err != nil {
		return nil, err
	}
	return &res, nil
}

// path resolves the ancestors of a; the hierarchy is at most three levels deep.
func (s *AreaService) path(ctx context.Context, a *entities.Area) (string, error) {
	known := map[uuid.UUID]*entities.Area{a.ID: a}
	cur := a
	for cur.ParentID != nil && len(known) < entities.MaxAreaLevel {
		parent, err := s.areaRepo.FindByID(ctx, *cur.ParentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				break
			}
			return "", err
		}
		known[parent.ID] = parent
		cur = parent
	}
	return areaPath(a.ID, known), nil
}

func (s *AreaService) Create(ctx context.Context, payload dto.CreateAreaDTO) (*dto.AreaDTO, error) {
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		return nil, apperrors.NewBadRequestError("Area name is required")
	}
	exists, err := s.areaRepo.ExistsByName(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errAreaNameTaken
	}

	level := 1
	if payload.ParentID != nil {
		parent, err := s.areaRepo.FindByID(ctx, *payload.ParentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, errParentNotFound
			}
			return nil, err
		}
		level = parent.ChildLevel()
		if level > entities.MaxAreaLevel {
			return nil, errAreaTooDeep
		}
	}

	now := s.now()
	area := &entities.Area{
		ID:          uuid.New(),
		Name:        name,
		Description: payload.Description,
		ParentID:    payload.ParentID,
		Level:       level,
	}
	area.CreatedAt, area.UpdatedAt = now, now

	if err := s.areaRepo.Create(ctx, area); err != nil {
		return nil, err
	}
	s.logger.Info("Area created", zap.String("name", area.Name), zap.Int("level", area.Level))

	res := toAreaDTO(area)
	return &res, nil
}

func (s *AreaService) Update(ctx context.Context, id uuid.UUID, payload dto.UpdateAreaDTO) (*dto.AreaDTO, error) {
	area, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload.Name.Valid {
		name := strings.TrimSpace(payload.Name.String)
		if name == "" {
			return nil, apperrors.NewBadRequestError("Area name is required")
		}
		if name != area.Name {
			exists, err := s.areaRepo.ExistsByName(ctx, name, &area.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, errAreaNameTaken
			}
			area.Name = name
		}
	}
	if payload.Description.Valid {
		area.Description = &payload.Description.String
	}

	oldLevel := area.Level
	if payload.MakeRoot || payload.ParentID != nil {
		if err := s.move(ctx, area, payload.ParentID, payload.MakeRoot); err != nil {
			return nil, err
		}
	}
	area.UpdatedAt = s.now()

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.areaRepo.UpdateInTx(ctx, tx, area); err != nil {
			return err
		}
		return s.areaRepo.ShiftSubtreeLevelsInTx(ctx, tx, area.ID, area.Level-oldLevel)
	})
	if err != nil {
		return nil, err
	}

	res := toAreaDTO(area)
	return &res, nil
}

// move re-parents area in memory after checking cycles and the depth of the moved subtree.
func (s *AreaService) move(ctx context.Context, area *entities.Area, parentID *uuid.UUID, makeRoot bool) error {
	subtree, err := s.areaRepo.Descendants(ctx, area.ID)
	if err != nil {
		return err
	}
	maxLevel := area.Level
	inSubtree := make(map[uuid.UUID]bool, len(subtree))
	for _, d := range subtree {
		inSubtree[d.ID] = true
		if d.Level > maxLevel {
			maxLevel = d.Level
		}
	}
	height := maxLevel - area.Level

	newLevel := 1
	var newParent *uuid.UUID
	if !makeRoot && parentID != nil {
		if *parentID == area.ID || inSubtree[*parentID] {
			return apperrors.NewBadRequestError("Cannot move area under itself or its descendants")
		}
		parent, err := s.areaRepo.FindByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return errParentNotFound
			}
			return err
		}
		newLevel = parent.ChildLevel()
		pid := parent.ID
		newParent = &pid
	}
	if newLevel+height > entities.MaxAreaLevel {
		return errAreaTooDeep
	}

	area.ParentID = newParent
	area.Level = newLevel
	return nil
}

// Delete removes a leaf area without findings. The counts run under a row lock on
// the area, which concurrent child or finding inserts must wait for.
func (s *AreaService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.areaRepo.FindByIDForUpdateInTx(ctx, tx, id); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return errAreaNotFound
			}
			return err
		}

		children, err := s.areaRepo.CountChildrenInTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return errAreaHasChildren
		}

		findings, err := s.areaRepo.CountFindingsInTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if findings > 0 {
			return errAreaHasFindings
		}

		return s.areaRepo.DeleteInTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Area deleted", zap.String("area_id", id.String()))
	return nil
}

func (s *AreaService) Descendants(ctx context.Context, id uuid.UUID) ([]dto.AreaDTO, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	areas, err := s.areaRepo.Descendants(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AreaDTO, 0, len(areas))
	for i := range areas {
		out = append(out, toAreaDTO(&areas[i]))
	}
	return out, nil
}

// DescendantIDs returns id and every area below it.
func (s *AreaService) DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return s.areaRepo.DescendantIDs(ctx, id)
}

func (s *AreaService) ListRoots(ctx context.Context, limit int) ([]entities.Area, error) {
	if limit <= 0 {
		limit = BotAreaLimit
	}
	return s.areaRepo.ListRoots(ctx, uint64(limit))
}

// AssignAdmin validates both sides and acknowledges the request.
// TODO: persist area admins once a user_areas join table exists.
func (s *AreaService) AssignAdmin(ctx context.Context, areaID, userID uuid.UUID) error {
	if _, err := s.find(ctx, areaID); err != nil {
		return err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewNotFoundError("User not found")
		}
		return err
	}
	if !user.Role.IsAdmin() {
		return apperrors.NewBadRequestError("User is not an admin")
	}
	s.logger.Info("Admin assigned to area", zap.String("area_id", areaID.String()), zap.String("user_id", userID.String()))
	return nil
}
