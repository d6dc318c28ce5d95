package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/aggregates/importjob"
	"github.com/stratix-hq/stratix-sdk/modules/okr/infrastructure/persistence"
	"github.com/stratix-hq/stratix-sdk/modules/okr/infrastructure/storage"
	"github.com/stratix-hq/stratix-sdk/pkg/composables"
	"github.com/stratix-hq/stratix-sdk/pkg/configuration"
)

type importCmdOptions struct {
	tenantID   uuid.UUID
	userID     uuid.UUID
	areaID     *uuid.UUID
	file       string
	createOnly bool
}

func newImportCmd() *cobra.Command {
	var opts importCmdOptions
	var tenant, user, area string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upload a CSV/XLSX file and run the import pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportCmd(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Path to the CSV or XLSX file (required)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&user, "user", "", "Submitting user UUID (required)")
	cmd.Flags().StringVar(&area, "area", "", "Default area UUID for imported objectives")
	cmd.Flags().BoolVar(&opts.createOnly, "create-only", false, "Create the job without processing it")

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("user")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		if opts.tenantID, err = uuid.Parse(strings.TrimSpace(tenant)); err != nil {
			return withCode(exitUsage, fmt.Errorf("invalid --tenant: %w", err))
		}
		if opts.userID, err = uuid.Parse(strings.TrimSpace(user)); err != nil {
			return withCode(exitUsage, fmt.Errorf("invalid --user: %w", err))
		}
		if area != "" {
			id, err := uuid.Parse(strings.TrimSpace(area))
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --area: %w", err))
			}
			opts.areaID = &id
		}
		return nil
	}

	return cmd
}

func runImportCmd(ctx context.Context, opts importCmdOptions) error {
	conf := configuration.Use()

	objectPath, checksum, size, err := stageUpload(conf.UploadsPath, opts.file)
	if err != nil {
		return err
	}

	ctx, pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx = composables.WithTenantID(ctx, opts.tenantID)
	ctx = composables.WithUserID(ctx, opts.userID)

	jobOpts := []importjob.Option{}
	if opts.areaID != nil {
		jobOpts = append(jobOpts, importjob.WithAreaID(*opts.areaID))
	}
	job := importjob.New(
		opts.tenantID, opts.userID,
		objectPath, filepath.Base(opts.file), checksum,
		storage.ContentTypeForPath(opts.file), size,
		jobOpts...,
	)

	jobs := persistence.NewImportJobRepository()
	if err := jobs.Create(ctx, job); err != nil {
		return withCode(exitDB, fmt.Errorf("create import job: %w", err))
	}

	if opts.createOnly {
		return writeJSONLine(jobSummary(job))
	}

	stopMetrics := startMetrics(ctx)
	defer stopMetrics()

	service := buildImportService(jobs)
	if err := service.Run(ctx, job.ID()); err != nil {
		return withCode(exitImport, fmt.Errorf("run import job %s: %w", job.ID(), err))
	}

	summary, err := loadJobSummary(ctx, jobs, job.ID())
	if err != nil {
		return err
	}
	return writeJSONLine(summary)
}

// stageUpload copies the source file into the uploads tree (unless it is
// already there) and returns its storage-relative path, sha256 and size.
func stageUpload(uploadsPath, file string) (string, string, int64, error) {
	src, err := os.Open(file)
	if err != nil {
		return "", "", 0, withCode(exitUsage, fmt.Errorf("open %s: %w", file, err))
	}
	defer func() { _ = src.Close() }()

	h := sha256.New()
	size, err := io.Copy(h, src)
	if err != nil {
		return "", "", 0, withCode(exitUsage, fmt.Errorf("read %s: %w", file, err))
	}
	checksum := hex.EncodeToString(h.Sum(nil))

	if rel, err := filepath.Rel(uploadsPath, file); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel), checksum, size, nil
	}

	objectPath := "imports/" + checksum + strings.ToLower(filepath.Ext(file))
	dst := filepath.Join(uploadsPath, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", "", 0, withCode(exitUsage, fmt.Errorf("prepare uploads dir: %w", err))
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", "", 0, withCode(exitUsage, fmt.Errorf("rewind %s: %w", file, err))
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", "", 0, withCode(exitUsage, fmt.Errorf("stage upload: %w", err))
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", "", 0, withCode(exitUsage, fmt.Errorf("stage upload: %w", err))
	}
	if err := out.Close(); err != nil {
		return "", "", 0, withCode(exitUsage, fmt.Errorf("stage upload: %w", err))
	}
	return objectPath, checksum, size, nil
}
