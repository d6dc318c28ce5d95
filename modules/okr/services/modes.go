package services

import "github.com/stratix-hq/stratix-sdk/pkg/configuration"

type Mode string

const (
	// ModeSync processes the whole file in a single transaction.
	ModeSync Mode = "sync"
	// ModeBatched classifies the whole file once, then applies entities in
	// dependency-ordered batches, each in its own transaction.
	ModeBatched Mode = "batched"
	// ModeStreaming reads CSV rows in bounded chunks without holding the full
	// row list in memory. Only CSV supports it; spreadsheets fall back to
	// batched regardless of size.
	ModeStreaming Mode = "streaming"
)

// SelectMode picks the processing strategy from the file's shape. rowCount may
// be -1 when unknown ahead of parsing (large CSVs), in which case size alone
// decides.
func SelectMode(rowCount int, sizeBytes int64, contentType string, opts configuration.ImportOptions) Mode {
	if sizeBytes > opts.StreamingByteThreshold && IsCSVContentType(contentType) {
		return ModeStreaming
	}
	if rowCount >= 0 && rowCount <= opts.SyncRowThreshold {
		return ModeSync
	}
	return ModeBatched
}
