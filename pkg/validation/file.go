package validation

import (
	"bufio"
	"io"
	"net/http"
	"slices"

	"safety-inspection/pkg/config"
	apperrors "safety-inspection/pkg/errors"
)

const sniffLen = 512

// ValidateFile checks the declared size and the sniffed MIME type against rules.
// The returned reader still yields the sniffed bytes.
func ValidateFile(file io.Reader, size int64, rules config.UploadRules) (io.Reader, string, error) {
	if size <= 0 {
		return nil, "", apperrors.NewInvalidInputError("file is empty")
	}
	if rules.MaxSizeMB > 0 && size > rules.MaxSizeMB*1024*1024 {
		return nil, "", apperrors.NewInvalidInputError("file size (%.2f MB) exceeds the %d MB limit", float64(size)/1024/1024, rules.MaxSizeMB)
	}

	br := bufio.NewReaderSize(file, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", apperrors.NewInvalidInputError("file could not be read")
	}
	if len(head) == 0 {
		return nil, "", apperrors.NewInvalidInputError("file is empty")
	}

	mimeType := http.DetectContentType(head)
	if !slices.Contains(rules.AllowedMimeTypes, mimeType) {
		return nil, "", apperrors.NewInvalidInputError("unsupported file type: %s", mimeType)
	}
	return br, mimeType, nil
}
