package entities

import (
	"time"

	"github.com/google/uuid"
)

type Photo struct {
	ID               uuid.UUID `json:"id" db:"id"`
	FindingID        uuid.UUID `json:"finding_id" db:"finding_id"`
	S3Key            string    `json:"s3_key" db:"s3_key"`
	OriginalFilename string    `json:"original_filename" db:"original_filename"`
	MimeType         string    `json:"mime_type" db:"mime_type"`
	Size             int64     `json:"size" db:"size"`
	UploadedAt       time.Time `json:"uploaded_at" db:"uploaded_at"`
}
