package dto

import (
	"time"

	"github.com/google/uuid"
)

type FindingDTO struct {
	ID          uuid.UUID     `json:"id"`
	ReportID    string        `json:"report_id"`
	Description string        `json:"description"`
	Severity    string        `json:"severity"`
	Status      string        `json:"status"`
	Location    *string       `json:"location"`
	ReporterID  uuid.UUID     `json:"reporter_id"`
	AreaID      uuid.UUID     `json:"area_id"`
	AssignedTo  *uuid.UUID    `json:"assigned_to"`
	ReportedAt  time.Time     `json:"reported_at"`
	ClosedAt    *time.Time    `json:"closed_at"`
	Reporter    *ShortUserDTO `json:"reporter"`
	Assignee    *ShortUserDTO `json:"assignee"`
	Area        *ShortAreaDTO `json:"area"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type PhotoDTO struct {
	ID               uuid.UUID `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	Size             int64     `json:"size"`
	URL              string    `json:"url"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

type StatusHistoryDTO struct {
	ID        uuid.UUID     `json:"id"`
	OldStatus *string       `json:"old_status"`
	NewStatus string        `json:"new_status"`
	Notes     *string       `json:"notes"`
	UpdatedBy uuid.UUID     `json:"updated_by"`
	Updater   *ShortUserDTO `json:"updater,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type FindingDetailDTO struct {
	FindingDTO
	Photos  []PhotoDTO         `json:"photos"`
	History []StatusHistoryDTO `json:"status_history"`
}

type FindingListDTO struct {
	Items      []FindingDTO `json:"items"`
	Total      uint64       `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

type UpdateFindingStatusDTO struct {
	Status string  `json:"status" validate:"required,finding_status"`
	Notes  *string `json:"notes" validate:"omitempty,max=2000"`
}

type SummaryRequestDTO struct {
	DateFrom *time.Time `json:"date_from"`
	DateTo   *time.Time `json:"date_to"`
}

type SeverityCountDTO struct {
	Severity   string  `json:"severity"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type AreaSummaryDTO struct {
	AreaID     uuid.UUID        `json:"area_id"`
	AreaName   string           `json:"area_name"`
	Total      int64            `json:"total_findings"`
	Open       int64            `json:"open_findings"`
	Closed     int64            `json:"closed_findings"`
	BySeverity map[string]int64 `json:"by_severity"`
}

type SummaryDTO struct {
	DateFrom   time.Time          `json:"date_from"`
	DateTo     time.Time          `json:"date_to"`
	Total      int64              `json:"total_findings"`
	BySeverity []SeverityCountDTO `json:"by_severity"`
	ByStatus   map[string]int64   `json:"by_status"`
	ByArea     []AreaSummaryDTO   `json:"by_area"`
}
