package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/utils"
)

const (
	xlsxDateTimeFormat = "2006-01-02 15:04"
	summarySheet       = "Summary"
	areasSheet         = "By area"
	findingsSheet      = "Findings"
)

var findingHeaders = []interface{}{
	"Report ID", "Reported at", "Area", "Severity", "Status", "Description", "Location", "Reporter", "Assignee", "Closed at",
}

func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)*10000/float64(total)) / 100
}

func (s *FindingService) summaryRange(from, to *time.Time) (time.Time, time.Time, error) {
	if from == nil {
		return time.Time{}, time.Time{}, apperrors.NewBadRequestError("date_from is required")
	}
	end := s.now()
	if to != nil {
		end = *to
	}
	if end.Before(*from) {
		return time.Time{}, time.Time{}, apperrors.NewBadRequestError("date_to must not be before date_from")
	}
	return *from, end, nil
}

// Summary aggregates the findings reported in [from, to]; to defaults to now.
func (s *FindingService) Summary(ctx context.Context, from, to *time.Time) (*dto.SummaryDTO, error) {
	start, end, err := s.summaryRange(from, to)
	if err != nil {
		return nil, err
	}
	counts, err := s.findingRepo.Counts(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var total int64
	bySeverity := make(map[entities.Severity]int64, len(entities.Severities))
	byStatus := make(map[string]int64, len(entities.Statuses))
	for _, st := range entities.Statuses {
		byStatus[string(st)] = 0
	}

	var areaOrder []string
	byArea := make(map[string]*dto.AreaSummaryDTO)
	for _, c := range counts {
		total += c.Count
		bySeverity[c.Severity] += c.Count
		byStatus[string(c.Status)] += c.Count

		key := c.AreaID.String()
		a, ok := byArea[key]
		if !ok {
			a = &dto.AreaSummaryDTO{AreaID: c.AreaID, AreaName: c.AreaName, BySeverity: make(map[string]int64, len(entities.Severities))}
			for _, sev := range entities.Severities {
				a.BySeverity[string(sev)] = 0
			}
			byArea[key] = a
			areaOrder = append(areaOrder, key)
		}
		a.Total += c.Count
		a.BySeverity[string(c.Severity)] += c.Count
		switch c.Status {
		case entities.StatusOpen:
			a.Open += c.Count
		case entities.StatusClosed:
			a.Closed += c.Count
		}
	}

	res := &dto.SummaryDTO{
		DateFrom:   start,
		DateTo:     end,
		Total:      total,
		BySeverity: make([]dto.SeverityCountDTO, 0, len(entities.Severities)),
		ByStatus:   byStatus,
		ByArea:     make([]dto.AreaSummaryDTO, 0, len(areaOrder)),
	}
	for _, sev := range entities.Severities {
		res.BySeverity = append(res.BySeverity, dto.SeverityCountDTO{
			Severity:   string(sev),
			Count:      bySeverity[sev],
			Percentage: percentage(bySeverity[sev], total),
		})
	}
	for _, key := range areaOrder {
		res.ByArea = append(res.ByArea, *byArea[key])
	}
	return res, nil
}

// ExportSummaryXLSX renders Summary as a workbook with a totals sheet and a per-area sheet.
func (s *FindingService) ExportSummaryXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	summary, err := s.Summary(ctx, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	rows := [][]interface{}{
		{"Period", summary.DateFrom.Format(xlsxDateTimeFormat) + " - " + summary.DateTo.Format(xlsxDateTimeFormat)},
		{"Total findings", summary.Total},
		{},
		{"Severity", "Count", "Percentage"},
	}
	for _, sev := range summary.BySeverity {
		rows = append(rows, []interface{}{entities.Severity(sev.Severity).Label(), sev.Count, sev.Percentage})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Status", "Count"})
	for _, st := range entities.Statuses {
		rows = append(rows, []interface{}{st.Label(), summary.ByStatus[string(st)]})
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(summarySheet, "A1", "A2", bold)
	_ = f.SetCellStyle(summarySheet, "A4", "C4", bold)
	_ = f.SetColWidth(summarySheet, "A", "A", 20)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)

	if _, err := f.NewSheet(areasSheet); err != nil {
		return nil, err
	}
	areaRows := [][]interface{}{{"Area", "Total", "Open", "Closed", "Low", "Medium", "High", "Critical"}}
	for _, a := range summary.ByArea {
		areaRows = append(areaRows, []interface{}{
			a.AreaName, a.Total, a.Open, a.Closed,
			a.BySeverity[string(entities.SeverityLow)],
			a.BySeverity[string(entities.SeverityMedium)],
			a.BySeverity[string(entities.SeverityHigh)],
			a.BySeverity[string(entities.SeverityCritical)],
		})
	}
	if err := writeRows(f, areasSheet, areaRows); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(areasSheet, "A1", "H1", bold)
	_ = f.SetColWidth(areasSheet, "A", "A", 30)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportListXLSX writes every finding matching q, ignoring paging.
func (s *FindingService) ExportListXLSX(ctx context.Context, q FindingListQuery) ([]byte, error) {
	filter, ok, err := s.toFilter(ctx, q)
	if err != nil {
		return nil, err
	}
	var findings []entities.Finding
	if ok {
		if findings, err = s.findingRepo.ListAll(ctx, filter); err != nil {
			return nil, err
		}
	}
	items, err := s.hydrate(ctx, findings)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", findingsSheet); err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0, len(items)+1)
	rows = append(rows, findingHeaders)
	for _, it := range items {
		var area, reporter, assignee, closedAt string
		if it.Area != nil {
			area = it.Area.Name
		}
		if it.Reporter != nil {
			reporter = fmt.Sprintf("%s (%s)", it.Reporter.FullName, it.Reporter.StaffID)
		}
		if it.Assignee != nil {
			assignee = it.Assignee.FullName
		}
		if it.ClosedAt != nil {
			closedAt = it.ClosedAt.Format(xlsxDateTimeFormat)
		}
		rows = append(rows, []interface{}{
			it.ReportID, it.ReportedAt.Format(xlsxDateTimeFormat), area,
			entities.Severity(it.Severity).Label(), entities.Status(it.Status).Label(),
			it.Description, utils.SafeDeref(it.Location), reporter, assignee, closedAt,
		})
	}
	if err := writeRows(f, findingsSheet, rows); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(findingsSheet, "A1", "J1", bold)
	}
	_ = f.SetColWidth(findingsSheet, "A", "B", 18)
	_ = f.SetColWidth(findingsSheet, "C", "C", 25)
	_ = f.SetColWidth(findingsSheet, "F", "F", 60)
	_ = f.SetColWidth(findingsSheet, "G", "I", 25)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}
	return nil
}
