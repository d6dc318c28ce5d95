package importjob

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// ImportJob tracks one uploaded file through the import pipeline. It is
// created by the upload boundary with status pending and mutated exclusively
// by the pipeline; terminal states are never revisited.
type ImportJob struct {
	id           uuid.UUID
	tenantID     uuid.UUID
	userID       uuid.UUID
	areaID       *uuid.UUID
	objectPath   string
	filename     string
	checksum     string
	contentType  string
	sizeBytes    int64
	status       Status
	totalRows    int
	processed    int
	succeeded    int
	failed       int
	metadata     map[string]any
	errorSummary string
	createdAt    time.Time
	startedAt    *time.Time
	completedAt  *time.Time
}

func New(tenantID, userID uuid.UUID, objectPath, filename, checksum, contentType string, sizeBytes int64, opts ...Option) *ImportJob {
	j := &ImportJob{
		id:          uuid.New(),
		tenantID:    tenantID,
		userID:      userID,
		objectPath:  objectPath,
		filename:    filename,
		checksum:    checksum,
		contentType: contentType,
		sizeBytes:   sizeBytes,
		status:      StatusPending,
		metadata:    map[string]any{},
		createdAt:   time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

type Option func(*ImportJob)

func WithID(id uuid.UUID) Option {
	return func(j *ImportJob) { j.id = id }
}

func WithAreaID(areaID uuid.UUID) Option {
	return func(j *ImportJob) { j.areaID = &areaID }
}

func Hydrate(
	id, tenantID, userID uuid.UUID,
	areaID *uuid.UUID,
	objectPath, filename, checksum, contentType string,
	sizeBytes int64,
	status Status,
	totalRows, processed, succeeded, failed int,
	metadata map[string]any,
	errorSummary string,
	createdAt time.Time,
	startedAt, completedAt *time.Time,
) *ImportJob {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &ImportJob{
		id:           id,
		tenantID:     tenantID,
		userID:       userID,
		areaID:       areaID,
		objectPath:   objectPath,
		filename:     filename,
		checksum:     checksum,
		contentType:  contentType,
		sizeBytes:    sizeBytes,
		status:       status,
		totalRows:    totalRows,
		processed:    processed,
		succeeded:    succeeded,
		failed:       failed,
		metadata:     metadata,
		errorSummary: errorSummary,
		createdAt:    createdAt,
		startedAt:    startedAt,
		completedAt:  completedAt,
	}
}

func (j *ImportJob) ID() uuid.UUID           { return j.id }
func (j *ImportJob) TenantID() uuid.UUID     { return j.tenantID }
func (j *ImportJob) UserID() uuid.UUID       { return j.userID }
func (j *ImportJob) AreaID() *uuid.UUID      { return j.areaID }
func (j *ImportJob) ObjectPath() string      { return j.objectPath }
func (j *ImportJob) Filename() string        { return j.filename }
func (j *ImportJob) Checksum() string        { return j.checksum }
func (j *ImportJob) ContentType() string     { return j.contentType }
func (j *ImportJob) SizeBytes() int64        { return j.sizeBytes }
func (j *ImportJob) Status() Status          { return j.status }
func (j *ImportJob) TotalRows() int          { return j.totalRows }
func (j *ImportJob) ProcessedRows() int      { return j.processed }
func (j *ImportJob) SuccessRows() int        { return j.succeeded }
func (j *ImportJob) ErrorRows() int          { return j.failed }
func (j *ImportJob) Metadata() map[string]any { return j.metadata }
func (j *ImportJob) ErrorSummary() string    { return j.errorSummary }
func (j *ImportJob) CreatedAt() time.Time    { return j.createdAt }
func (j *ImportJob) StartedAt() *time.Time   { return j.startedAt }
func (j *ImportJob) CompletedAt() *time.Time { return j.completedAt }

func (j *ImportJob) SetMetadata(key string, value any) {
	j.metadata[key] = value
}

// Start moves a pending job into processing and records the totals discovered
// by the parser.
func (j *ImportJob) Start(totalRows int) error {
	if j.status != StatusPending {
		return fmt.Errorf("cannot start job %s in status %q", j.id, j.status)
	}
	now := time.Now().UTC()
	j.status = StatusProcessing
	j.totalRows = totalRows
	j.startedAt = &now
	return nil
}

// RecordBatch adds one batch's row outcomes to the job counters. Counters
// only ever grow while processing.
func (j *ImportJob) RecordBatch(succeeded, failed int) error {
	if j.status != StatusProcessing {
		return fmt.Errorf("cannot record batch on job %s in status %q", j.id, j.status)
	}
	if succeeded < 0 || failed < 0 {
		return fmt.Errorf("negative batch counts (%d, %d)", succeeded, failed)
	}
	j.processed += succeeded + failed
	j.succeeded += succeeded
	j.failed += failed
	return nil
}

// SetTotalRows corrects the row total once the true count is known (streaming
// mode discovers it only at end of file).
func (j *ImportJob) SetTotalRows(n int) {
	j.totalRows = n
}

// Finalize computes the terminal status from the counters: completed when
// every row was processed and none failed, failed when none succeeded,
// partial otherwise (including jobs aborted before reaching end of file).
func (j *ImportJob) Finalize() error {
	switch {
	case j.failed == 0 && j.processed >= j.totalRows:
		return j.finish(StatusCompleted, "")
	case j.failed == 0:
		return j.finish(StatusPartial, fmt.Sprintf("aborted after %d of %d rows", j.processed, j.totalRows))
	case j.succeeded == 0 && j.processed > 0:
		return j.finish(StatusFailed, fmt.Sprintf("all %d processed rows failed", j.failed))
	default:
		return j.finish(StatusPartial, fmt.Sprintf("%d of %d rows failed", j.failed, j.processed))
	}
}

// Fail terminates the job on a fatal infrastructure error.
func (j *ImportJob) Fail(summary string) error {
	return j.finish(StatusFailed, summary)
}

func (j *ImportJob) finish(status Status, summary string) error {
	if j.status.IsTerminal() {
		return fmt.Errorf("job %s already finished as %q", j.id, j.status)
	}
	if j.processed != j.succeeded+j.failed {
		return fmt.Errorf("job %s counter mismatch: processed=%d success=%d error=%d",
			j.id, j.processed, j.succeeded, j.failed)
	}
	now := time.Now().UTC()
	j.status = status
	j.errorSummary = summary
	j.completedAt = &now
	return nil
}
