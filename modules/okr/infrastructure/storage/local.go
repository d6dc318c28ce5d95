package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheetfile"
)

var ErrObjectNotFound = errors.New("object not found")

// LocalStorage serves uploaded files from a directory tree. Object paths are
// relative to the base directory; path traversal outside it is rejected.
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir}
}

func (s *LocalStorage) resolve(objectPath string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(objectPath))
	rel, err := filepath.Rel(s.baseDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errors.Errorf("object path %q escapes storage root", objectPath)
	}
	return full, nil
}

func (s *LocalStorage) Download(_ context.Context, objectPath string) ([]byte, error) {
	full, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrObjectNotFound, "%s", objectPath)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read object")
	}
	return data, nil
}

func (s *LocalStorage) Open(_ context.Context, objectPath string) (io.ReadCloser, error) {
	full, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrObjectNotFound, "%s", objectPath)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open object")
	}
	return f, nil
}

func (s *LocalStorage) Head(_ context.Context, objectPath string) (sheetfile.Metadata, error) {
	full, err := s.resolve(objectPath)
	if err != nil {
		return sheetfile.Metadata{}, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return sheetfile.Metadata{}, errors.Wrapf(ErrObjectNotFound, "%s", objectPath)
	}
	if err != nil {
		return sheetfile.Metadata{}, errors.Wrap(err, "stat object")
	}
	return sheetfile.Metadata{
		Size:        info.Size(),
		ContentType: ContentTypeForPath(objectPath),
	}, nil
}

// ContentTypeForPath infers the import content type from the file extension.
func ContentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return sheetfile.ContentTypeCSV
	case ".xlsx", ".xlsm":
		return sheetfile.ContentTypeXLSX
	case ".xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}
