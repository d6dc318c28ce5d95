package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/aggregates/importjob"
	"github.com/stratix-hq/stratix-sdk/modules/okr/infrastructure/persistence/models"
	"github.com/stratix-hq/stratix-sdk/pkg/composables"
)

const (
	importJobFindQuery = `
        SELECT
            id,
            tenant_id,
            user_id,
            area_id,
            object_path,
            filename,
            checksum,
            content_type,
            size_bytes,
            status,
            total_rows,
            processed_rows,
            success_rows,
            error_rows,
            metadata,
            error_summary,
            created_at,
            started_at,
            completed_at
        FROM okr_import_jobs`

	importJobInsertQuery = `
        INSERT INTO okr_import_jobs (
            id, tenant_id, user_id, area_id, object_path, filename, checksum,
            content_type, size_bytes, status, total_rows, processed_rows,
            success_rows, error_rows, metadata, error_summary, created_at,
            started_at, completed_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	importJobUpdateQuery = `
        UPDATE okr_import_jobs
        SET status = $2,
            total_rows = $3,
            processed_rows = $4,
            success_rows = $5,
            error_rows = $6,
            metadata = $7,
            error_summary = $8,
            started_at = $9,
            completed_at = $10
        WHERE id = $1 AND tenant_id = $11`

	importJobItemListQuery = `
        SELECT
            id,
            job_id,
            row_number,
            entity_type,
            natural_key,
            entity_id,
            action,
            status,
            error,
            warnings,
            raw_rows,
            processed_at
        FROM okr_import_job_items
        WHERE job_id = $1
        ORDER BY row_number, processed_at`
)

// dbQuerier is the subset of pgx satisfied by both a transaction and the
// pool. Job bookkeeping runs on whichever is bound to ctx: counter updates
// between batches deliberately commit outside the batch transaction.
type dbQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

func useQuerier(ctx context.Context) (dbQuerier, error) {
	if tx, err := composables.UseTx(ctx); err == nil {
		return tx, nil
	}
	return composables.UsePool(ctx)
}

type ImportJobRepository struct{}

func NewImportJobRepository() importjob.Repository {
	return &ImportJobRepository{}
}

func (r *ImportJobRepository) Create(ctx context.Context, job *importjob.ImportJob) error {
	q, err := useQuerier(ctx)
	if err != nil {
		return err
	}
	row, err := toDBImportJob(job)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, importJobInsertQuery,
		row.ID, row.TenantID, row.UserID, row.AreaID, row.ObjectPath,
		row.Filename, row.Checksum, row.ContentType, row.SizeBytes,
		row.Status, row.TotalRows, row.ProcessedRows, row.SuccessRows,
		row.ErrorRows, row.Metadata, row.ErrorSummary, row.CreatedAt,
		row.StartedAt, row.CompletedAt,
	)
	return errors.Wrap(err, "insert import job")
}

func (r *ImportJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*importjob.ImportJob, error) {
	q, err := useQuerier(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryOne(ctx, q, importJobFindQuery+" WHERE id = $1", id)
}

func (r *ImportJobRepository) FindFinishedByChecksum(
	ctx context.Context,
	tenantID uuid.UUID,
	checksum string,
	since time.Time,
	exclude uuid.UUID,
) (*importjob.ImportJob, error) {
	q, err := useQuerier(ctx)
	if err != nil {
		return nil, err
	}
	query := importJobFindQuery + `
        WHERE tenant_id = $1
          AND checksum = $2
          AND status IN ('completed', 'partial')
          AND completed_at > $3
          AND id <> $4
        ORDER BY completed_at DESC
        LIMIT 1`
	return r.queryOne(ctx, q, query, tenantID, checksum, since, exclude)
}

func (r *ImportJobRepository) queryOne(ctx context.Context, q dbQuerier, query string, args ...any) (*importjob.ImportJob, error) {
	var row models.ImportJob
	err := q.QueryRow(ctx, query, args...).Scan(
		&row.ID,
		&row.TenantID,
		&row.UserID,
		&row.AreaID,
		&row.ObjectPath,
		&row.Filename,
		&row.Checksum,
		&row.ContentType,
		&row.SizeBytes,
		&row.Status,
		&row.TotalRows,
		&row.ProcessedRows,
		&row.SuccessRows,
		&row.ErrorRows,
		&row.Metadata,
		&row.ErrorSummary,
		&row.CreatedAt,
		&row.StartedAt,
		&row.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, importjob.ErrJobNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query import job")
	}
	return toDomainImportJob(&row)
}

func (r *ImportJobRepository) Update(ctx context.Context, job *importjob.ImportJob) error {
	q, err := useQuerier(ctx)
	if err != nil {
		return err
	}
	row, err := toDBImportJob(job)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, importJobUpdateQuery,
		row.ID, row.Status, row.TotalRows, row.ProcessedRows,
		row.SuccessRows, row.ErrorRows, row.Metadata, row.ErrorSummary,
		row.StartedAt, row.CompletedAt, row.TenantID,
	)
	if err != nil {
		return errors.Wrap(err, "update import job")
	}
	if tag.RowsAffected() == 0 {
		return importjob.ErrJobNotFound
	}
	return nil
}

// AddItems bulk-loads item rows with COPY; item volume tracks row volume, so
// per-row INSERTs would dominate large imports.
func (r *ImportJobRepository) AddItems(ctx context.Context, items []importjob.Item) error {
	if len(items) == 0 {
		return nil
	}
	q, err := useQuerier(ctx)
	if err != nil {
		return err
	}

	rows := make([]*models.ImportJobItem, 0, len(items))
	for _, item := range items {
		row, err := toDBImportJobItem(item)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	_, err = q.CopyFrom(
		ctx,
		pgx.Identifier{"okr_import_job_items"},
		[]string{
			"id", "job_id", "row_number", "entity_type", "natural_key",
			"entity_id", "action", "status", "error", "warnings", "raw_rows",
			"processed_at",
		},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			return []any{
				row.ID, row.JobID, row.RowNumber, row.EntityType,
				row.NaturalKey, row.EntityID, row.Action, row.Status,
				row.Error, row.Warnings, row.RawRows, row.ProcessedAt,
			}, nil
		}),
	)
	return errors.Wrap(err, "copy import job items")
}

func (r *ImportJobRepository) ListItems(ctx context.Context, jobID uuid.UUID) ([]importjob.Item, error) {
	q, err := useQuerier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, importJobItemListQuery, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "query import job items")
	}
	defer rows.Close()

	var items []importjob.Item
	for rows.Next() {
		var row models.ImportJobItem
		if err := rows.Scan(
			&row.ID,
			&row.JobID,
			&row.RowNumber,
			&row.EntityType,
			&row.NaturalKey,
			&row.EntityID,
			&row.Action,
			&row.Status,
			&row.Error,
			&row.Warnings,
			&row.RawRows,
			&row.ProcessedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan import job item")
		}
		item, err := toDomainImportJobItem(&row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
