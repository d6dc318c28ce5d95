package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/aggregates/importjob"
	"github.com/stratix-hq/stratix-sdk/modules/okr/infrastructure/persistence"
)

func newStatusCmd() *cobra.Command {
	var jobFlag string
	var showItems bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show an import job's status and row outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(strings.TrimSpace(jobFlag))
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --job: %w", err))
			}
			return runStatusCmd(cmd.Context(), jobID, showItems)
		},
	}

	cmd.Flags().StringVar(&jobFlag, "job", "", "Import job UUID (required)")
	cmd.Flags().BoolVar(&showItems, "items", false, "Also print one line per row outcome")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func runStatusCmd(ctx context.Context, jobID uuid.UUID, showItems bool) error {
	ctx, pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	jobs := persistence.NewImportJobRepository()
	job, err := jobs.GetByID(ctx, jobID)
	if errors.Is(err, importjob.ErrJobNotFound) {
		return withCode(exitNotFound, fmt.Errorf("import job %s not found", jobID))
	}
	if err != nil {
		return withCode(exitDB, fmt.Errorf("load import job %s: %w", jobID, err))
	}

	if err := writeJSONLine(jobSummary(job)); err != nil {
		return err
	}
	if !showItems {
		return nil
	}

	items, err := jobs.ListItems(ctx, jobID)
	if err != nil {
		return withCode(exitDB, fmt.Errorf("list items for job %s: %w", jobID, err))
	}
	for _, item := range items {
		line := map[string]any{
			"row":    item.RowNumber,
			"type":   string(item.EntityType),
			"key":    item.NaturalKey,
			"action": string(item.Action),
			"status": string(item.Status),
		}
		if item.EntityID != nil {
			line["entity_id"] = item.EntityID.String()
		}
		if item.Error != "" {
			line["error"] = item.Error
		}
		if len(item.Warnings) > 0 {
			line["warnings"] = item.Warnings
		}
		if err := writeJSONLine(line); err != nil {
			return err
		}
	}
	return nil
}
