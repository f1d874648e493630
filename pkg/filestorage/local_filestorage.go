package filestorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileStorage keeps objects on disk under basePath; URL returns a path served by the API.
type LocalFileStorage struct {
	basePath  string
	urlPrefix string
}

func NewLocalFileStorage(basePath, urlPrefix string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalFileStorage{basePath: basePath, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *LocalFileStorage) Save(_ context.Context, file io.Reader, _ int64, originalFileName, _ string, prefix string) (string, error) {
	key := ObjectKey(prefix, originalFileName)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", err
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err = io.Copy(dst, file); err != nil {
		_ = os.Remove(fullPath)
		return "", err
	}

	return key, nil
}

func (s *LocalFileStorage) Delete(_ context.Context, key string) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalFileStorage) URL(_ context.Context, key string) (string, error) {
	return s.urlPrefix + "/" + key, nil
}
