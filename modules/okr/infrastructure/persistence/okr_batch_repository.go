package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheet"
	"github.com/stratix-hq/stratix-sdk/pkg/composables"
)

const (
	// Natural-key dedup happens in the database: every upsert conflicts on the
	// tenant-scoped case-insensitive key and reports via xmax whether the row
	// was freshly inserted.
	areaUpsertQuery = `
        INSERT INTO areas (id, tenant_id, name, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, now(), now())
        ON CONFLICT (tenant_id, lower(name)) DO UPDATE
        SET description = COALESCE(NULLIF(EXCLUDED.description, ''), areas.description),
            updated_at = now()
        RETURNING id, (xmax = 0) AS inserted`

	userUpsertQuery = `
        INSERT INTO user_profiles (id, tenant_id, email, full_name, role, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, now(), now())
        ON CONFLICT (tenant_id, lower(email)) DO UPDATE
        SET full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), user_profiles.full_name),
            role = COALESCE(NULLIF(EXCLUDED.role, ''), user_profiles.role),
            updated_at = now()
        RETURNING id, (xmax = 0) AS inserted`

	objectiveUpsertQuery = `
        INSERT INTO objectives (
            id, tenant_id, area_id, title, description, progress, priority,
            status, start_date, end_date, created_by, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
        ON CONFLICT (tenant_id, lower(title)) DO UPDATE
        SET area_id = COALESCE(EXCLUDED.area_id, objectives.area_id),
            description = COALESCE(NULLIF(EXCLUDED.description, ''), objectives.description),
            progress = COALESCE(EXCLUDED.progress, objectives.progress),
            priority = EXCLUDED.priority,
            status = EXCLUDED.status,
            start_date = COALESCE(EXCLUDED.start_date, objectives.start_date),
            end_date = COALESCE(EXCLUDED.end_date, objectives.end_date),
            updated_at = now()
        RETURNING id, (xmax = 0) AS inserted`

	initiativeUpsertQuery = `
        INSERT INTO initiatives (
            id, tenant_id, objective_id, title, description, progress, status,
            start_date, due_date, budget, actual_cost, created_by, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
        ON CONFLICT (tenant_id, COALESCE(objective_id, '00000000-0000-0000-0000-000000000000'::uuid), lower(title)) DO UPDATE
        SET description = COALESCE(NULLIF(EXCLUDED.description, ''), initiatives.description),
            progress = COALESCE(EXCLUDED.progress, initiatives.progress),
            status = EXCLUDED.status,
            start_date = COALESCE(EXCLUDED.start_date, initiatives.start_date),
            due_date = COALESCE(EXCLUDED.due_date, initiatives.due_date),
            budget = COALESCE(EXCLUDED.budget, initiatives.budget),
            actual_cost = COALESCE(EXCLUDED.actual_cost, initiatives.actual_cost),
            updated_at = now()
        RETURNING id, (xmax = 0) AS inserted`

	activityInsertQuery = `
        INSERT INTO activities (
            id, tenant_id, initiative_id, title, description, due_date,
            created_by, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
        RETURNING id`

	objectiveLookupQuery = `
        SELECT id, lower(title) FROM objectives
        WHERE tenant_id = $1 AND lower(title) = ANY($2)`

	initiativeLookupQuery = `
        SELECT id, lower(title) FROM initiatives
        WHERE tenant_id = $1 AND lower(title) = ANY($2)
        ORDER BY updated_at`
)

type OKRBatchRepository struct{}

func NewOKRBatchRepository() sheet.BatchRepository {
	return &OKRBatchRepository{}
}

// ApplyBatch upserts the batch in dependency order inside the caller's
// transaction. Parent references resolve against this batch's own upserts
// first and rows committed by earlier batches second; a reference that
// resolves neither way fails the draft, not the batch.
func (r *OKRBatchRepository) ApplyBatch(
	ctx context.Context,
	scope sheet.Scope,
	batch *sheet.EntityBatch,
) (*sheet.BatchResult, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	result := &sheet.BatchResult{}

	if err := r.applyAreas(ctx, tx, scope, batch.Areas, result); err != nil {
		return nil, err
	}
	if err := r.applyUsers(ctx, tx, scope, batch.Users, result); err != nil {
		return nil, err
	}
	objectiveIDs, err := r.applyObjectives(ctx, tx, scope, batch.Objectives, result)
	if err != nil {
		return nil, err
	}
	initiativeIDs, err := r.applyInitiatives(ctx, tx, scope, batch.Initiatives, objectiveIDs, result)
	if err != nil {
		return nil, err
	}
	if err := r.applyActivities(ctx, tx, scope, batch.Activities, initiativeIDs, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *OKRBatchRepository) applyAreas(
	ctx context.Context, tx pgx.Tx, scope sheet.Scope,
	drafts []*sheet.AreaDraft, result *sheet.BatchResult,
) error {
	if len(drafts) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, d := range drafts {
		b.Queue(areaUpsertQuery, uuid.New(), scope.TenantID, d.Name, d.Description)
	}
	return scanUpserts(ctx, tx, b, len(drafts), func(i int, id uuid.UUID, inserted bool) {
		result.Add(draftResult(sheet.EntityTypeArea, &drafts[i].Draft, id, inserted))
	})
}

func (r *OKRBatchRepository) applyUsers(
	ctx context.Context, tx pgx.Tx, scope sheet.Scope,
	drafts []*sheet.UserDraft, result *sheet.BatchResult,
) error {
	if len(drafts) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, d := range drafts {
		b.Queue(userUpsertQuery, uuid.New(), scope.TenantID, d.Email, d.FullName, d.Role)
	}
	return scanUpserts(ctx, tx, b, len(drafts), func(i int, id uuid.UUID, inserted bool) {
		result.Add(draftResult(sheet.EntityTypeUser, &drafts[i].Draft, id, inserted))
	})
}

func (r *OKRBatchRepository) applyObjectives(
	ctx context.Context, tx pgx.Tx, scope sheet.Scope,
	drafts []*sheet.ObjectiveDraft, result *sheet.BatchResult,
) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(drafts))
	if len(drafts) == 0 {
		return ids, nil
	}
	b := &pgx.Batch{}
	for _, d := range drafts {
		b.Queue(objectiveUpsertQuery,
			uuid.New(), scope.TenantID, scope.AreaID, d.Title, d.Description,
			d.Progress, d.Priority, d.Status, d.StartDate, d.EndDate,
			scope.SubmittedBy,
		)
	}
	err := scanUpserts(ctx, tx, b, len(drafts), func(i int, id uuid.UUID, inserted bool) {
		ids[drafts[i].Key] = id
		result.Add(draftResult(sheet.EntityTypeObjective, &drafts[i].Draft, id, inserted))
	})
	return ids, err
}

func (r *OKRBatchRepository) applyInitiatives(
	ctx context.Context, tx pgx.Tx, scope sheet.Scope,
	drafts []*sheet.InitiativeDraft,
	objectiveIDs map[string]uuid.UUID,
	result *sheet.BatchResult,
) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(drafts))
	if len(drafts) == 0 {
		return ids, nil
	}

	// committed-objective lookup for titles this batch did not upsert itself
	var missing []string
	for _, d := range drafts {
		if d.ObjectiveTitle == "" {
			continue
		}
		key := sheet.NormalizeKey(d.ObjectiveTitle)
		if _, ok := objectiveIDs[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		committed, err := lookupByTitle(ctx, tx, objectiveLookupQuery, scope.TenantID, missing)
		if err != nil {
			return nil, err
		}
		for key, id := range committed {
			objectiveIDs[key] = id
		}
	}

	b := &pgx.Batch{}
	queued := make([]*sheet.InitiativeDraft, 0, len(drafts))
	for _, d := range drafts {
		var objectiveID *uuid.UUID
		if d.ObjectiveTitle != "" {
			id, ok := objectiveIDs[sheet.NormalizeKey(d.ObjectiveTitle)]
			if !ok {
				res := draftResult(sheet.EntityTypeInitiative, &d.Draft, uuid.Nil, false)
				res.Err = fmt.Sprintf("objective %q not found", d.ObjectiveTitle)
				result.Add(res)
				continue
			}
			objectiveID = &id
		}
		b.Queue(initiativeUpsertQuery,
			uuid.New(), scope.TenantID, objectiveID, d.Title, d.Description,
			d.Progress, d.Status, d.StartDate, d.DueDate, d.Budget,
			d.ActualCost, scope.SubmittedBy,
		)
		queued = append(queued, d)
	}

	err := scanUpserts(ctx, tx, b, len(queued), func(i int, id uuid.UUID, inserted bool) {
		d := queued[i]
		ids[d.Key] = id
		// activities reference initiatives by bare title
		ids[sheet.NormalizeKey(d.Title)] = id
		result.Add(draftResult(sheet.EntityTypeInitiative, &d.Draft, id, inserted))
	})
	return ids, err
}

func (r *OKRBatchRepository) applyActivities(
	ctx context.Context, tx pgx.Tx, scope sheet.Scope,
	drafts []*sheet.ActivityDraft,
	initiativeIDs map[string]uuid.UUID,
	result *sheet.BatchResult,
) error {
	if len(drafts) == 0 {
		return nil
	}

	var missing []string
	for _, d := range drafts {
		key := sheet.NormalizeKey(d.InitiativeTitle)
		if _, ok := initiativeIDs[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		committed, err := lookupByTitle(ctx, tx, initiativeLookupQuery, scope.TenantID, missing)
		if err != nil {
			return err
		}
		for key, id := range committed {
			initiativeIDs[key] = id
		}
	}

	b := &pgx.Batch{}
	queued := make([]*sheet.ActivityDraft, 0, len(drafts))
	for _, d := range drafts {
		initiativeID, ok := initiativeIDs[sheet.NormalizeKey(d.InitiativeTitle)]
		if !ok {
			res := draftResult(sheet.EntityTypeActivity, &d.Draft, uuid.Nil, false)
			res.Err = fmt.Sprintf("initiative %q not found", d.InitiativeTitle)
			result.Add(res)
			continue
		}
		b.Queue(activityInsertQuery,
			uuid.New(), scope.TenantID, initiativeID, d.Title, d.Description,
			d.DueDate, scope.SubmittedBy,
		)
		queued = append(queued, d)
	}
	if len(queued) == 0 {
		return nil
	}

	br := tx.SendBatch(ctx, b)
	for _, d := range queued {
		var id uuid.UUID
		if err := br.QueryRow().Scan(&id); err != nil {
			_ = br.Close()
			return errors.Wrap(err, "insert activity")
		}
		res := draftResult(sheet.EntityTypeActivity, &d.Draft, id, true)
		result.Add(res)
	}
	return br.Close()
}

// scanUpserts drains one queued upsert batch, invoking collect with each
// returned id and insert/update flag in queue order.
func scanUpserts(
	ctx context.Context, tx pgx.Tx, b *pgx.Batch, n int,
	collect func(i int, id uuid.UUID, inserted bool),
) error {
	br := tx.SendBatch(ctx, b)
	for i := 0; i < n; i++ {
		var id uuid.UUID
		var inserted bool
		if err := br.QueryRow().Scan(&id, &inserted); err != nil {
			_ = br.Close()
			return errors.Wrap(err, "upsert batch")
		}
		collect(i, id, inserted)
	}
	return br.Close()
}

func lookupByTitle(
	ctx context.Context, tx pgx.Tx, query string,
	tenantID uuid.UUID, keys []string,
) (map[string]uuid.UUID, error) {
	rows, err := tx.Query(ctx, query, tenantID, keys)
	if err != nil {
		return nil, errors.Wrap(err, "lookup by title")
	}
	defer rows.Close()

	found := make(map[string]uuid.UUID, len(keys))
	for rows.Next() {
		var id uuid.UUID
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, errors.Wrap(err, "scan title lookup")
		}
		found[key] = id
	}
	return found, rows.Err()
}

func draftResult(t sheet.EntityType, d *sheet.Draft, id uuid.UUID, inserted bool) sheet.EntityResult {
	action := sheet.ActionUpdate
	if inserted {
		action = sheet.ActionCreate
	}
	return sheet.EntityResult{
		Type:     t,
		Key:      d.Key,
		Rows:     d.Rows,
		Owned:    d.Owned,
		ID:       id,
		Action:   action,
		Warnings: d.Warnings,
	}
}
