package services

import (
	"strings"

	"github.com/google/uuid"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
)

func toUserDTO(u *entities.User) dto.UserDTO {
	return dto.UserDTO{
		ID:         u.ID,
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FullName:   u.FullName,
		StaffID:    u.StaffID,
		Department: u.Department,
		Section:    u.Section,
		Role:       string(u.Role),
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func toShortUserDTO(u *entities.User) *dto.ShortUserDTO {
	if u == nil {
		return nil
	}
	return &dto.ShortUserDTO{
		ID:         u.ID,
		FullName:   u.FullName,
		StaffID:    u.StaffID,
		Department: u.Department,
		Section:    u.Section,
		Role:       string(u.Role),
	}
}

func toAreaDTO(a *entities.Area) dto.AreaDTO {
	return dto.AreaDTO{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		ParentID:    a.ParentID,
		Level:       a.Level,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toFindingDTO(f *entities.Finding) dto.FindingDTO {
	return dto.FindingDTO{
		ID:          f.ID,
		ReportID:    f.ReportID,
		Description: f.Description,
		Severity:    string(f.Severity),
		Status:      string(f.Status),
		Location:    f.Location,
		ReporterID:  f.ReporterID,
		AreaID:      f.AreaID,
		AssignedTo:  f.AssignedTo,
		ReportedAt:  f.ReportedAt,
		ClosedAt:    f.ClosedAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// areaPath joins the names from the root down to id, e.g. "Production > Line 1".
func areaPath(id uuid.UUID, areas map[uuid.UUID]*entities.Area) string {
	var names []string
	for cur, depth := areas[id], 0; cur != nil && depth < entities.MaxAreaLevel; depth++ {
		names = append([]string{cur.Name}, names...)
		if cur.ParentID == nil {
			break
		}
		cur = areas[*cur.ParentID]
	}
	return strings.Join(names, " > ")
}

func statusPtrString(s *entities.Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
