package filestorage

import (
	"context"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStorageInterface stores opaque objects under generated keys.
type FileStorageInterface interface {
	Save(ctx context.Context, file io.Reader, size int64, originalFileName, contentType, prefix string) (key string, err error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// ObjectKey builds "<prefix>/<uuid><ext>" keeping the extension of originalFileName.
func ObjectKey(prefix, originalFileName string) string {
	ext := strings.ToLower(filepath.Ext(originalFileName))
	return path.Join(prefix, uuid.NewString()+ext)
}

// DetectContentType falls back to the extension when the caller did not provide a type.
func DetectContentType(contentType, originalFileName string) string {
	if contentType != "" {
		return contentType
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(originalFileName))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
