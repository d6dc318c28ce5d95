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
	"github.com/stratix-hq/stratix-sdk/pkg/composables"
)

func newRunCmd() *cobra.Command {
	var jobFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a pending import job",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(strings.TrimSpace(jobFlag))
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --job: %w", err))
			}
			return runRunCmd(cmd.Context(), jobID)
		},
	}

	cmd.Flags().StringVar(&jobFlag, "job", "", "Import job UUID (required)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func runRunCmd(ctx context.Context, jobID uuid.UUID) error {
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

	ctx = composables.WithTenantID(ctx, job.TenantID())
	ctx = composables.WithUserID(ctx, job.UserID())

	stopMetrics := startMetrics(ctx)
	defer stopMetrics()

	service := buildImportService(jobs)
	if err := service.Run(ctx, job.ID()); err != nil {
		return withCode(exitImport, fmt.Errorf("run import job %s: %w", jobID, err))
	}

	summary, err := loadJobSummary(ctx, jobs, job.ID())
	if err != nil {
		return err
	}
	return writeJSONLine(summary)
}
