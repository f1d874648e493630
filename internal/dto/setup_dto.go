package dto

const (
	SetupStatusCreated       = "created"
	SetupStatusAlreadyExists = "already_exists"
)

type SetupResultDTO struct {
	Status       string   `json:"status"`
	AdminStaffID string   `json:"admin_staff_id"`
	AreasCreated []string `json:"areas_created"`
}

type HealthDTO struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
	Version  string `json:"version,omitempty"`
}
