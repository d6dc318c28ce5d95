package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/aggregates/importjob"
	"github.com/stratix-hq/stratix-sdk/modules/okr/infrastructure/persistence"
	"github.com/stratix-hq/stratix-sdk/modules/okr/infrastructure/storage"
	"github.com/stratix-hq/stratix-sdk/modules/okr/services"
	"github.com/stratix-hq/stratix-sdk/pkg/configuration"
	"github.com/stratix-hq/stratix-sdk/pkg/eventbus"
	"github.com/stratix-hq/stratix-sdk/pkg/metrics"
)

// startMetrics exposes Prometheus metrics for the duration of the command
// when METRICS_ADDR is configured. The returned stop function is safe to
// defer unconditionally.
func startMetrics(ctx context.Context) func() {
	conf := configuration.Use()
	if conf.MetricsAddr == "" {
		return func() {}
	}
	shutdown := metrics.StartServer(conf.MetricsAddr, conf.Logger())
	return func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = shutdown(stopCtx)
	}
}

func buildImportService(jobs importjob.Repository) *services.ImportService {
	conf := configuration.Use()
	log := conf.Logger()

	bus := eventbus.NewEventPublisher(log)
	bus.Subscribe(func(ev services.ProgressEvent) {
		log.WithFields(logrus.Fields{
			"job_id":    ev.JobID,
			"status":    ev.Status,
			"processed": ev.Processed,
			"total":     ev.Total,
			"percent":   int(ev.Percentage),
		}).Debug("import progress")
	})

	return services.NewImportService(
		jobs,
		persistence.NewOKRBatchRepository(),
		storage.NewLocalStorage(conf.UploadsPath),
		bus,
		services.NewRetryingTxRunner(conf.Import, logrus.NewEntry(log)),
		conf.Import,
		logrus.NewEntry(log),
	)
}

// loadJobSummary fetches the job's persisted state before summarizing it.
// The pipeline mutates its own freshly hydrated aggregate, so any instance
// held from before the run is stale.
func loadJobSummary(ctx context.Context, jobs importjob.Repository, id uuid.UUID) (map[string]any, error) {
	job, err := jobs.GetByID(ctx, id)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("reload import job %s: %w", id, err))
	}
	return jobSummary(job), nil
}

func jobSummary(job *importjob.ImportJob) map[string]any {
	summary := map[string]any{
		"job_id":         job.ID().String(),
		"status":         string(job.Status()),
		"filename":       job.Filename(),
		"total_rows":     job.TotalRows(),
		"processed_rows": job.ProcessedRows(),
		"success_rows":   job.SuccessRows(),
		"error_rows":     job.ErrorRows(),
	}
	if job.ErrorSummary() != "" {
		summary["error_summary"] = job.ErrorSummary()
	}
	if dup, ok := job.Metadata()["duplicate_of"]; ok {
		summary["duplicate_of"] = dup
	}
	if job.StartedAt() != nil && job.CompletedAt() != nil {
		summary["duration"] = job.CompletedAt().Sub(*job.StartedAt()).Round(time.Millisecond).String()
	}
	return summary
}
