package controllers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/services"
	"safety-inspection/pkg/api"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type FindingController struct {
	findingService services.FindingServiceInterface
	logger         *zap.Logger
}

func NewFindingController(findingService services.FindingServiceInterface, logger *zap.Logger) *FindingController {
	return &FindingController{findingService: findingService, logger: logger}
}

// parseFindingQuery reads the list filters shared by List and Export.
func parseFindingQuery(values url.Values) (services.FindingListQuery, error) {
	var q services.FindingListQuery

	page, err := utils.ParsePagination(values, services.FindingPageSizeDefault, services.FindingPageSizeMax)
	if err != nil {
		return q, err
	}
	q.Page, q.PageSize = page.Page, page.PageSize

	if q.AreaID, err = utils.ParseOptionalUUID(values.Get("area_id"), "area_id"); err != nil {
		return q, err
	}
	if q.ReporterID, err = utils.ParseOptionalUUID(values.Get("reporter_id"), "reporter_id"); err != nil {
		return q, err
	}
	if raw := values.Get("severity"); raw != "" {
		severity, err := entities.ParseSeverity(raw)
		if err != nil {
			return q, apperrors.NewInvalidInputError("invalid severity")
		}
		q.Severity = &severity
	}
	if raw := values.Get("status"); raw != "" {
		status, err := entities.ParseStatus(raw)
		if err != nil {
			return q, apperrors.NewInvalidInputError("invalid status")
		}
		q.Status = &status
	}
	if q.DateFrom, err = utils.ParseOptionalTime(values.Get("date_from"), "date_from"); err != nil {
		return q, err
	}
	if q.DateTo, err = utils.ParseOptionalTime(values.Get("date_to"), "date_to"); err != nil {
		return q, err
	}
	return q, nil
}

// List keeps the flat items/total/page shape instead of the list envelope.
func (ctrl *FindingController) List(c echo.Context) error {
	q, err := parseFindingQuery(c.QueryParams())
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	res, err := ctrl.findingService.List(c.Request().Context(), q)
	if err != nil {
		ctrl.logger.Error("Failed to list findings", zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Findings loaded", res)
}

func (ctrl *FindingController) Get(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "finding id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	finding, err := ctrl.findingService.Get(c.Request().Context(), id)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Finding loaded", finding)
}

func (ctrl *FindingController) UpdateStatus(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "finding id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	principal, err := authz.PrincipalFromContext(c.Request().Context())
	if err != nil {
		return api.ErrorResponse(c, apperrors.ErrUnauthorized)
	}
	var payload dto.UpdateFindingStatusDTO
	if err := c.Bind(&payload); err != nil {
		return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid status payload"))
	}
	if err := c.Validate(&payload); err != nil {
		return api.ErrorResponse(c, err)
	}

	finding, err := ctrl.findingService.UpdateStatus(c.Request().Context(), principal, id, payload)
	if err != nil {
		ctrl.logger.Info("Status update rejected",
			zap.String("finding_id", id.String()),
			zap.String("status", payload.Status),
			zap.Error(err),
		)
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Status updated", finding)
}

// Assign reads ?assigned_to=; an empty value unassigns.
func (ctrl *FindingController) Assign(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "finding id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	assignee, err := utils.ParseOptionalUUID(c.QueryParam("assigned_to"), "assigned_to")
	if err != nil {
		return api.ErrorResponse(c, err)
	}

	finding, err := ctrl.findingService.Assign(c.Request().Context(), id, assignee)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Assignment updated", finding)
}

func summaryRange(c echo.Context) (*dto.SummaryRequestDTO, error) {
	var req dto.SummaryRequestDTO
	var err error
	if req.DateFrom, err = utils.ParseOptionalTime(c.QueryParam("date_from"), "date_from"); err != nil {
		return nil, err
	}
	if req.DateTo, err = utils.ParseOptionalTime(c.QueryParam("date_to"), "date_to"); err != nil {
		return nil, err
	}
	return &req, nil
}

func (ctrl *FindingController) Summary(c echo.Context) error {
	req, err := summaryRange(c)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	summary, err := ctrl.findingService.Summary(c.Request().Context(), req.DateFrom, req.DateTo)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Summary generated", summary)
}

func (ctrl *FindingController) SummaryExport(c echo.Context) error {
	req, err := summaryRange(c)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	data, err := ctrl.findingService.ExportSummaryXLSX(c.Request().Context(), req.DateFrom, req.DateTo)
	if err != nil {
		ctrl.logger.Error("Summary export failed", zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return attachment(c, fmt.Sprintf("safety-summary-%s.xlsx", req.DateFrom.Format("2006-01-02")), data)
}

func (ctrl *FindingController) Export(c echo.Context) error {
	q, err := parseFindingQuery(c.QueryParams())
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	data, err := ctrl.findingService.ExportListXLSX(c.Request().Context(), q)
	if err != nil {
		ctrl.logger.Error("Findings export failed", zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return attachment(c, "safety-findings.xlsx", data)
}

func attachment(c echo.Context, name string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}
