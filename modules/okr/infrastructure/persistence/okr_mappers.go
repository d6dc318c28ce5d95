package persistence

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/aggregates/importjob"
	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheet"
	"github.com/stratix-hq/stratix-sdk/modules/okr/infrastructure/persistence/models"
)

func toDBImportJob(job *importjob.ImportJob) (*models.ImportJob, error) {
	metadata, err := json.Marshal(job.Metadata())
	if err != nil {
		return nil, errors.Wrap(err, "marshal job metadata")
	}

	var areaID *string
	if job.AreaID() != nil {
		s := job.AreaID().String()
		areaID = &s
	}

	return &models.ImportJob{
		ID:            job.ID().String(),
		TenantID:      job.TenantID().String(),
		UserID:        job.UserID().String(),
		AreaID:        areaID,
		ObjectPath:    job.ObjectPath(),
		Filename:      job.Filename(),
		Checksum:      job.Checksum(),
		ContentType:   job.ContentType(),
		SizeBytes:     job.SizeBytes(),
		Status:        string(job.Status()),
		TotalRows:     job.TotalRows(),
		ProcessedRows: job.ProcessedRows(),
		SuccessRows:   job.SuccessRows(),
		ErrorRows:     job.ErrorRows(),
		Metadata:      metadata,
		ErrorSummary:  job.ErrorSummary(),
		CreatedAt:     job.CreatedAt(),
		StartedAt:     job.StartedAt(),
		CompletedAt:   job.CompletedAt(),
	}, nil
}

func toDomainImportJob(row *models.ImportJob) (*importjob.ImportJob, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "parse job id")
	}
	tenantID, err := uuid.Parse(row.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "parse tenant id")
	}
	userID, err := uuid.Parse(row.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "parse user id")
	}

	var areaID *uuid.UUID
	if row.AreaID != nil {
		parsed, err := uuid.Parse(*row.AreaID)
		if err != nil {
			return nil, errors.Wrap(err, "parse area id")
		}
		areaID = &parsed
	}

	var metadata map[string]any
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, errors.Wrap(err, "unmarshal job metadata")
		}
	}

	return importjob.Hydrate(
		id, tenantID, userID,
		areaID,
		row.ObjectPath, row.Filename, row.Checksum, row.ContentType,
		row.SizeBytes,
		importjob.Status(row.Status),
		row.TotalRows, row.ProcessedRows, row.SuccessRows, row.ErrorRows,
		metadata,
		row.ErrorSummary,
		row.CreatedAt,
		row.StartedAt, row.CompletedAt,
	), nil
}

func toDBImportJobItem(item importjob.Item) (*models.ImportJobItem, error) {
	warnings, err := json.Marshal(item.Warnings)
	if err != nil {
		return nil, errors.Wrap(err, "marshal item warnings")
	}
	rawRows, err := json.Marshal(item.RawRows)
	if err != nil {
		return nil, errors.Wrap(err, "marshal item rows")
	}

	var entityID *string
	if item.EntityID != nil {
		s := item.EntityID.String()
		entityID = &s
	}

	return &models.ImportJobItem{
		ID:          item.ID.String(),
		JobID:       item.JobID.String(),
		RowNumber:   item.RowNumber,
		EntityType:  string(item.EntityType),
		NaturalKey:  item.NaturalKey,
		EntityID:    entityID,
		Action:      string(item.Action),
		Status:      string(item.Status),
		Error:       item.Error,
		Warnings:    warnings,
		RawRows:     rawRows,
		ProcessedAt: item.ProcessedAt,
	}, nil
}

func toDomainImportJobItem(row *models.ImportJobItem) (importjob.Item, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return importjob.Item{}, errors.Wrap(err, "parse item id")
	}
	jobID, err := uuid.Parse(row.JobID)
	if err != nil {
		return importjob.Item{}, errors.Wrap(err, "parse item job id")
	}

	var entityID *uuid.UUID
	if row.EntityID != nil {
		parsed, err := uuid.Parse(*row.EntityID)
		if err != nil {
			return importjob.Item{}, errors.Wrap(err, "parse item entity id")
		}
		entityID = &parsed
	}

	var warnings []string
	if len(row.Warnings) > 0 {
		if err := json.Unmarshal(row.Warnings, &warnings); err != nil {
			return importjob.Item{}, errors.Wrap(err, "unmarshal item warnings")
		}
	}
	var rawRows []int
	if len(row.RawRows) > 0 {
		if err := json.Unmarshal(row.RawRows, &rawRows); err != nil {
			return importjob.Item{}, errors.Wrap(err, "unmarshal item rows")
		}
	}

	return importjob.Item{
		ID:          id,
		JobID:       jobID,
		RowNumber:   row.RowNumber,
		EntityType:  sheet.EntityType(row.EntityType),
		NaturalKey:  row.NaturalKey,
		EntityID:    entityID,
		Action:      sheet.Action(row.Action),
		Status:      importjob.ItemStatus(row.Status),
		Error:       row.Error,
		Warnings:    warnings,
		RawRows:     rawRows,
		ProcessedAt: row.ProcessedAt,
	}, nil
}
