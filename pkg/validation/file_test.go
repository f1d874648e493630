package validation

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-inspection/pkg/config"
	apperrors "safety-inspection/pkg/errors"
)

const jpegHeader = "\xff\xd8\xff\xe0\x00\x10JFIF\x00"

func TestValidateFileKeepsContent(t *testing.T) {
	body := jpegHeader + strings.Repeat("x", 2048)

	r, mimeType, err := ValidateFile(strings.NewReader(body), int64(len(body)), config.FindingPhotoRules)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestValidateFileShortPNG(t *testing.T) {
	body := "\x89PNG\r\n\x1a\n" + "tiny"
	_, mimeType, err := ValidateFile(strings.NewReader(body), int64(len(body)), config.FindingPhotoRules)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
}

func TestValidateFileRejects(t *testing.T) {
	cases := map[string]struct {
		body string
		size int64
		want string
	}{
		"empty":    {"", 0, "file is empty"},
		"too big":  {jpegHeader, 21 * 1024 * 1024, "exceeds the 20 MB limit"},
		"pdf":      {"%PDF-1.4\n", 9, "unsupported file type: application/pdf"},
		"text":     {"hello", 5, "unsupported file type: text/plain"},
		"no bytes": {"", 12, "file is empty"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ValidateFile(strings.NewReader(tc.body), tc.size, config.FindingPhotoRules)
			var inputErr *apperrors.InvalidInputError
			require.ErrorAs(t, err, &inputErr)
			assert.Contains(t, inputErr.Message, tc.want)
		})
	}
}
