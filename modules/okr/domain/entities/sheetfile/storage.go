package sheetfile

import (
	"context"
	"io"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Metadata struct {
	Size        int64
	ContentType string
}

// Storage is the object-storage boundary the pipeline consumes. Failures
// propagate as job-failing errors.
type Storage interface {
	Download(ctx context.Context, objectPath string) ([]byte, error)
	// Open returns a sequential reader over the object, used for files too
	// large to buffer.
	Open(ctx context.Context, objectPath string) (io.ReadCloser, error)
	Head(ctx context.Context, objectPath string) (Metadata, error)
}
