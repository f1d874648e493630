package dto

import "github.com/aarondl/null/v8"

type NotificationSettingsDTO struct {
	NewFinding       bool   `json:"new_finding"`
	StatusChange     bool   `json:"status_change"`
	DailySummary     bool   `json:"daily_summary"`
	WeeklySummary    bool   `json:"weekly_summary"`
	DailySummaryTime string `json:"daily_summary_time"`
}

func DefaultNotificationSettings() NotificationSettingsDTO {
	return NotificationSettingsDTO{
		NewFinding:       true,
		StatusChange:     true,
		DailySummary:     true,
		WeeklySummary:    true,
		DailySummaryTime: "09:00",
	}
}

type UpdateNotificationSettingsDTO struct {
	NewFinding       null.Bool   `json:"new_finding"`
	StatusChange     null.Bool   `json:"status_change"`
	DailySummary     null.Bool   `json:"daily_summary"`
	WeeklySummary    null.Bool   `json:"weekly_summary"`
	DailySummaryTime null.String `json:"daily_summary_time" validate:"omitempty,datetime=15:04"`
}
