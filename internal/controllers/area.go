package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	"safety-inspection/internal/services"
	"safety-inspection/pkg/api"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/utils"
)

type AreaController struct {
	areaService services.AreaServiceInterface
	logger      *zap.Logger
}

func NewAreaController(areaService services.AreaServiceInterface, logger *zap.Logger) *AreaController {
	return &AreaController{areaService: areaService, logger: logger}
}

func (ctrl *AreaController) List(c echo.Context) error {
	var filter repositories.AreaFilter
	if raw := c.QueryParam("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil || level < 1 || level > entities.MaxAreaLevel {
			return api.ErrorResponse(c, apperrors.NewInvalidInputError("level must be between 1 and %d", entities.MaxAreaLevel))
		}
		filter.Level = &level
	}
	parentID, err := utils.ParseOptionalUUID(c.QueryParam("parent_id"), "parent_id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	filter.ParentID = parentID

	areas, err := ctrl.areaService.List(c.Request().Context(), filter)
	if err != nil {
		ctrl.logger.Error("Failed to list areas", zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Areas loaded", areas)
}

// Tree accepts ?depth=, clamped to 1..3 with 2 as the default.
func (ctrl *AreaController) Tree(c echo.Context) error {
	depth := 0
	if raw := c.QueryParam("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return api.ErrorResponse(c, apperrors.NewInvalidInputError("depth must be an integer"))
		}
		depth = d
	}
	tree, err := ctrl.areaService.Tree(c.Request().Context(), depth)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Area tree loaded", tree)
}

func (ctrl *AreaController) Get(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "area id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	area, err := ctrl.areaService.Get(c.Request().Context(), id)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Area loaded", area)
}

func (ctrl *AreaController) Descendants(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "area id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	areas, err := ctrl.areaService.Descendants(c.Request().Context(), id)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Descendants loaded", areas)
}

func (ctrl *AreaController) Create(c echo.Context) error {
	var payload dto.CreateAreaDTO
	if err := c.Bind(&payload); err != nil {
		return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid area payload"))
	}
	if err := c.Validate(&payload); err != nil {
		return api.ErrorResponse(c, err)
	}

	area, err := ctrl.areaService.Create(c.Request().Context(), payload)
	if err != nil {
		ctrl.logger.Info("Area creation rejected", zap.String("name", payload.Name), zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusCreated, "Area created", area)
}

func (ctrl *AreaController) Update(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "area id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	var payload dto.UpdateAreaDTO
	if err := c.Bind(&payload); err != nil {
		return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid area payload"))
	}
	if err := c.Validate(&payload); err != nil {
		return api.ErrorResponse(c, err)
	}

	area, err := ctrl.areaService.Update(c.Request().Context(), id, payload)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Area updated", area)
}

func (ctrl *AreaController) Delete(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "area id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	if err := ctrl.areaService.Delete(c.Request().Context(), id); err != nil {
		return api.ErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignAdmin takes user_id from the query string or the JSON body.
func (ctrl *AreaController) AssignAdmin(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "area id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	var payload dto.AssignAreaAdminDTO
	if raw := c.QueryParam("user_id"); raw != "" {
		if payload.UserID, err = utils.ParseUUID(raw, "user_id"); err != nil {
			return api.ErrorResponse(c, err)
		}
	} else if err := c.Bind(&payload); err != nil {
		return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid payload"))
	}
	if err := c.Validate(&payload); err != nil {
		return api.ErrorResponse(c, err)
	}

	if err := ctrl.areaService.AssignAdmin(c.Request().Context(), id, payload.UserID); err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne[any](c, http.StatusAccepted, "Admin assignment accepted", nil)
}
