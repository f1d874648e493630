package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "safety-inspection/pkg/errors"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseUUID parses an id from a path or query value.
func ParseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperrors.NewInvalidInputError("invalid %s", field)
	}
	return id, nil
}

// ParseOptionalUUID returns nil for an empty value.
func ParseOptionalUUID(raw, field string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := ParseUUID(raw, field)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ParseOptionalTime accepts RFC3339 timestamps or plain dates.
func ParseOptionalTime(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.NewInvalidInputError("invalid %s, expected RFC3339 or YYYY-MM-DD", field)
}
