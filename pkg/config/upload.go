package config

// UploadRules bounds one kind of upload.
type UploadRules struct {
	AllowedMimeTypes []string
	MaxSizeMB        int64
	PathPrefix       string
}

// FindingPhotoRules accepts the formats Telegram and browsers produce. 20 MB is the Bot API download limit.
var FindingPhotoRules = UploadRules{
	AllowedMimeTypes: []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
	MaxSizeMB:        20,
	PathPrefix:       "photos",
}
