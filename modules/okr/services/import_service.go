package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/aggregates/importjob"
	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheet"
	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheetfile"
	"github.com/stratix-hq/stratix-sdk/pkg/configuration"
	"github.com/stratix-hq/stratix-sdk/pkg/eventbus"
)

// ImportService drives a pending import job to a terminal status: it fetches
// the uploaded file, parses and classifies rows, upserts entities in
// dependency order and keeps the job's counters, items and progress events
// current along the way. Row-level failures never stop the job; only
// infrastructure faults do.
type ImportService struct {
	jobs    importjob.Repository
	batches sheet.BatchRepository
	storage sheetfile.Storage
	bus     eventbus.EventBus
	runTx   TxRunner
	opts    configuration.ImportOptions
	log     *logrus.Entry
}

func NewImportService(
	jobs importjob.Repository,
	batches sheet.BatchRepository,
	storage sheetfile.Storage,
	bus eventbus.EventBus,
	runTx TxRunner,
	opts configuration.ImportOptions,
	log *logrus.Entry,
) *ImportService {
	return &ImportService{
		jobs:    jobs,
		batches: batches,
		storage: storage,
		bus:     bus,
		runTx:   runTx,
		opts:    opts,
		log:     log,
	}
}

// Run processes the job with the given id. The job must be pending. The
// returned error reports infrastructure faults only; row-level outcomes are
// recorded on the job and its items.
func (s *ImportService) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status() != importjob.StatusPending {
		return fmt.Errorf("job %s is %q, want %q", jobID, job.Status(), importjob.StatusPending)
	}

	log := s.log.WithFields(logrus.Fields{
		"job_id":    job.ID(),
		"tenant_id": job.TenantID(),
		"filename":  job.Filename(),
	})
	emitter := NewProgressEmitter(s.bus, job.ID())
	started := time.Now()

	if done, err := s.shortCircuitDuplicate(ctx, job, emitter, log); done || err != nil {
		if err == nil {
			s.observeTerminal(job, started)
		}
		return err
	}

	meta, err := s.storage.Head(ctx, job.ObjectPath())
	if err != nil {
		return s.failJob(ctx, job, emitter, started, log, fmt.Sprintf("source file unavailable: %v", err))
	}
	contentType := job.ContentType()
	if contentType == "" {
		contentType = meta.ContentType
	}

	if SelectMode(-1, meta.Size, contentType, s.opts) == ModeStreaming {
		err = s.runStreaming(ctx, job, emitter, contentType, log)
	} else {
		err = s.runBuffered(ctx, job, emitter, contentType, log)
	}
	if err != nil {
		var ff formatFault
		if errors.As(err, &ff) {
			return s.failJob(ctx, job, emitter, started, log, ff.Error())
		}
		return err
	}

	if err := job.Finalize(); err != nil {
		return err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist terminal job %s: %w", job.ID(), err)
	}
	emitter.Emit(job)
	s.observeTerminal(job, started)
	log.WithFields(logrus.Fields{
		"status":    job.Status(),
		"processed": job.ProcessedRows(),
		"succeeded": job.SuccessRows(),
		"failed":    job.ErrorRows(),
	}).Info("import job finished")
	return nil
}

// formatFault marks unparsable input: the job fails cleanly instead of
// surfacing an infrastructure error.
type formatFault struct{ err error }

func (f formatFault) Error() string { return f.err.Error() }
func (f formatFault) Unwrap() error { return f.err }

// shortCircuitDuplicate finalizes the job as completed without processing
// when an identical file already finished recently for the same tenant.
func (s *ImportService) shortCircuitDuplicate(
	ctx context.Context,
	job *importjob.ImportJob,
	emitter *ProgressEmitter,
	log *logrus.Entry,
) (bool, error) {
	since := time.Now().UTC().Add(-s.opts.DuplicateWindow)
	prior, err := s.jobs.FindFinishedByChecksum(ctx, job.TenantID(), job.Checksum(), since, job.ID())
	if errors.Is(err, importjob.ErrJobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("duplicate lookup for job %s: %w", job.ID(), err)
	}

	if err := job.Start(0); err != nil {
		return false, err
	}
	job.SetMetadata("duplicate_of", prior.ID().String())
	if err := job.Finalize(); err != nil {
		return false, err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return false, fmt.Errorf("persist duplicate job %s: %w", job.ID(), err)
	}
	emitter.Emit(job)
	log.WithField("duplicate_of", prior.ID()).Info("identical file already imported, skipping")
	return true, nil
}

func (s *ImportService) runBuffered(
	ctx context.Context,
	job *importjob.ImportJob,
	emitter *ProgressEmitter,
	contentType string,
	log *logrus.Entry,
) error {
	data, err := s.storage.Download(ctx, job.ObjectPath())
	if err != nil {
		return formatFault{fmt.Errorf("download %s: %w", job.ObjectPath(), err)}
	}

	rows, err := ParseBuffer(data, contentType)
	if err != nil {
		return formatFault{err}
	}

	mode := SelectMode(len(rows), int64(len(data)), contentType, s.opts)
	log.WithFields(logrus.Fields{"mode": mode, "rows": len(rows)}).Info("import job started")

	if err := job.Start(len(rows)); err != nil {
		return err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return err
	}
	emitter.Emit(job)

	set := ClassifyRows(rows)
	errs := Validate(set)

	batchSize := s.opts.BatchSize
	if mode == ModeSync {
		batchSize = 0
	}
	batches := packBatches(set, batchSize)
	emitter.SetBatchPlan(len(batches))

	if err := s.recordNoOps(ctx, job, emitter, set.NoOpRows); err != nil {
		return err
	}
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return s.abort(ctx, job, emitter, log)
		}
		if err := s.processBatch(ctx, job, emitter, batch, errs, nil, log); err != nil {
			return err
		}
	}
	return nil
}

func (s *ImportService) runStreaming(
	ctx context.Context,
	job *importjob.ImportJob,
	emitter *ProgressEmitter,
	contentType string,
	log *logrus.Entry,
) error {
	estimated, err := s.estimateCSVRows(ctx, job.ObjectPath())
	if err != nil {
		return formatFault{err}
	}
	log.WithFields(logrus.Fields{"mode": ModeStreaming, "estimated_rows": estimated}).Info("import job started")

	if err := job.Start(estimated); err != nil {
		return err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return err
	}
	emitter.SetBatchPlan((estimated + s.opts.BatchSize - 1) / s.opts.BatchSize)
	emitter.Emit(job)

	rc, err := s.storage.Open(ctx, job.ObjectPath())
	if err != nil {
		return formatFault{fmt.Errorf("open %s: %w", job.ObjectPath(), err)}
	}
	defer rc.Close()

	var aborted bool
	var flushErr error
	seen := map[string]bool{}
	total, err := StreamCSVRows(rc, s.opts.BatchSize, func(chunk []sheet.ParsedRow) error {
		if err := ctx.Err(); err != nil {
			aborted = true
			return err
		}
		set := ClassifyRows(chunk)
		errs := Validate(set)
		if err := s.recordNoOps(ctx, job, emitter, set.NoOpRows); err != nil {
			flushErr = err
			return err
		}
		if err := s.processBatch(ctx, job, emitter, batchFromSet(set), errs, seen, log); err != nil {
			flushErr = err
			return err
		}
		return nil
	})
	if aborted {
		return s.abort(ctx, job, emitter, log)
	}
	if flushErr != nil {
		return flushErr
	}
	if err != nil {
		// anything left is a malformed file, not an infrastructure fault
		return formatFault{err}
	}

	job.SetTotalRows(total)
	return nil
}

// estimateCSVRows counts newlines in a sequential pass so streaming progress
// has a denominator before the real parse. The count is corrected at end of
// file from what the parser actually saw.
func (s *ImportService) estimateCSVRows(ctx context.Context, objectPath string) (int, error) {
	rc, err := s.storage.Open(ctx, objectPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", objectPath, err)
	}
	defer rc.Close()

	lines := 0
	reader := bufio.NewReaderSize(rc, 64*1024)
	buf := make([]byte, 64*1024)
	for {
		n, err := reader.Read(buf)
		lines += bytes.Count(buf[:n], []byte{'\n'})
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("scan %s: %w", objectPath, err)
		}
	}
	if lines == 0 {
		return 0, nil
	}
	// minus the header line
	return lines - 1, nil
}

// claimItem reports whether an item should still be recorded for the entity.
// Streaming chunks can revisit a natural key; the first chunk's item stands
// for the entity and later outcomes only move the counters. Activities are
// row-scoped and always recorded. A nil map disables the bookkeeping.
func claimItem(seen map[string]bool, t sheet.EntityType, key string) bool {
	if seen == nil || t == sheet.EntityTypeActivity {
		return true
	}
	k := string(t) + ":" + key
	if seen[k] {
		return false
	}
	seen[k] = true
	return true
}

// processBatch applies one EntityBatch: drafts that failed validation become
// error items immediately, the rest go through the transactional upsert.
// A failed transaction fails every row of the batch but not the job.
func (s *ImportService) processBatch(
	ctx context.Context,
	job *importjob.ImportJob,
	emitter *ProgressEmitter,
	batch *sheet.EntityBatch,
	errs ValidationErrors,
	seen map[string]bool,
	log *logrus.Entry,
) error {
	valid := &sheet.EntityBatch{}
	var items []importjob.Item
	succeeded, failed := 0, 0

	reject := func(t sheet.EntityType, d *sheet.Draft, problems []string) {
		if claimItem(seen, t, d.Key) {
			items = append(items, importjob.NewErrorItem(job.ID(), t, d.Key, d.Rows, strings.Join(problems, "; ")))
		}
		failed += len(d.Owned)
	}

	for _, d := range batch.Areas {
		if problems := errs.For(sheet.EntityTypeArea, d.Key); len(problems) > 0 {
			reject(sheet.EntityTypeArea, &d.Draft, problems)
		} else {
			valid.Areas = append(valid.Areas, d)
		}
	}
	for _, d := range batch.Users {
		if problems := errs.For(sheet.EntityTypeUser, d.Key); len(problems) > 0 {
			reject(sheet.EntityTypeUser, &d.Draft, problems)
		} else {
			valid.Users = append(valid.Users, d)
		}
	}
	for _, d := range batch.Objectives {
		if problems := errs.For(sheet.EntityTypeObjective, d.Key); len(problems) > 0 {
			reject(sheet.EntityTypeObjective, &d.Draft, problems)
		} else {
			valid.Objectives = append(valid.Objectives, d)
		}
	}
	for _, d := range batch.Initiatives {
		if problems := errs.For(sheet.EntityTypeInitiative, d.Key); len(problems) > 0 {
			reject(sheet.EntityTypeInitiative, &d.Draft, problems)
		} else {
			valid.Initiatives = append(valid.Initiatives, d)
		}
	}
	for _, d := range batch.Activities {
		if problems := errs.ForActivity(d); len(problems) > 0 {
			reject(sheet.EntityTypeActivity, &d.Draft, problems)
		} else {
			valid.Activities = append(valid.Activities, d)
		}
	}

	if !valid.IsEmpty() {
		scope := sheet.Scope{
			TenantID:    job.TenantID(),
			AreaID:      job.AreaID(),
			SubmittedBy: job.UserID(),
		}
		var result *sheet.BatchResult
		txErr := s.runTx(ctx, func(txCtx context.Context) error {
			var applyErr error
			result, applyErr = s.batches.ApplyBatch(txCtx, scope, valid)
			return applyErr
		})
		switch {
		case txErr != nil && ctx.Err() != nil:
			return s.abort(ctx, job, emitter, log)
		case txErr != nil:
			batchesTotal.WithLabelValues("failed").Inc()
			log.WithError(txErr).Warn("batch transaction failed, rows marked as errors")
			msg := fmt.Sprintf("batch failed: %v", txErr)
			eachDraft(valid, func(t sheet.EntityType, d *sheet.Draft) {
				if claimItem(seen, t, d.Key) {
					items = append(items, importjob.NewErrorItem(job.ID(), t, d.Key, d.Rows, msg))
				}
				failed += len(d.Owned)
			})
		default:
			batchesTotal.WithLabelValues("applied").Inc()
			for _, res := range result.Results {
				if res.Err != "" {
					if claimItem(seen, res.Type, res.Key) {
						items = append(items, importjob.NewErrorItem(job.ID(), res.Type, res.Key, res.Rows, res.Err))
					}
					failed += len(res.Owned)
					continue
				}
				if claimItem(seen, res.Type, res.Key) {
					items = append(items, importjob.NewSuccessItem(job.ID(), res))
				}
				succeeded += len(res.Owned)
			}
		}
	}

	if err := job.RecordBatch(succeeded, failed); err != nil {
		return err
	}
	rowsTotal.WithLabelValues("success").Add(float64(succeeded))
	rowsTotal.WithLabelValues("error").Add(float64(failed))

	if len(items) > 0 {
		if err := s.jobs.AddItems(ctx, items); err != nil {
			return fmt.Errorf("persist items for job %s: %w", job.ID(), err)
		}
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist counters for job %s: %w", job.ID(), err)
	}
	emitter.BatchDone()
	emitter.Emit(job)
	return nil
}

// recordNoOps accounts rows that named no entity at all. They count as
// processed successes so the counters always sum up, but their items are
// marked skipped.
func (s *ImportService) recordNoOps(
	ctx context.Context,
	job *importjob.ImportJob,
	emitter *ProgressEmitter,
	rows []int,
) error {
	if len(rows) == 0 {
		return nil
	}
	items := make([]importjob.Item, 0, len(rows))
	for _, n := range rows {
		items = append(items, importjob.NewSkippedItem(job.ID(), n))
	}
	if err := job.RecordBatch(len(rows), 0); err != nil {
		return err
	}
	if err := s.jobs.AddItems(ctx, items); err != nil {
		return fmt.Errorf("persist skipped items for job %s: %w", job.ID(), err)
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return err
	}
	emitter.Emit(job)
	return nil
}

// abort finalizes a cancelled job from whatever the counters already say.
// Remaining rows stay unprocessed, which Finalize reports as partial.
func (s *ImportService) abort(
	ctx context.Context,
	job *importjob.ImportJob,
	emitter *ProgressEmitter,
	log *logrus.Entry,
) error {
	if err := job.Finalize(); err != nil {
		return err
	}
	// Persist with a fresh context: the caller's is already cancelled.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.jobs.Update(persistCtx, job); err != nil {
		return fmt.Errorf("persist aborted job %s: %w", job.ID(), err)
	}
	emitter.Emit(job)
	jobsTotal.WithLabelValues(string(job.Status())).Inc()
	log.WithField("status", job.Status()).Warn("import job aborted")
	return context.Cause(ctx)
}

func (s *ImportService) failJob(
	ctx context.Context,
	job *importjob.ImportJob,
	emitter *ProgressEmitter,
	started time.Time,
	log *logrus.Entry,
	summary string,
) error {
	if err := job.Fail(summary); err != nil {
		return err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist failed job %s: %w", job.ID(), err)
	}
	emitter.Emit(job)
	s.observeTerminal(job, started)
	log.WithField("summary", summary).Error("import job failed")
	return nil
}

func (s *ImportService) observeTerminal(job *importjob.ImportJob, started time.Time) {
	jobsTotal.WithLabelValues(string(job.Status())).Inc()
	jobDuration.Observe(time.Since(started).Seconds())
}

// packBatches splits the classified set into dependency-ordered batches of
// roughly batchSize owned rows each. batchSize <= 0 puts everything into one
// batch. An entity's rows never straddle two batches.
func packBatches(set *sheet.ClassifiedSet, batchSize int) []*sheet.EntityBatch {
	var batches []*sheet.EntityBatch
	current := &sheet.EntityBatch{}
	weight := 0

	flush := func() {
		if !current.IsEmpty() {
			batches = append(batches, current)
			current = &sheet.EntityBatch{}
			weight = 0
		}
	}
	fits := func(w int) bool {
		return batchSize <= 0 || weight == 0 || weight+w <= batchSize
	}

	for _, d := range set.Areas() {
		if !fits(len(d.Owned)) {
			flush()
		}
		current.Areas = append(current.Areas, d)
		weight += len(d.Owned)
	}
	for _, d := range set.Users() {
		if !fits(len(d.Owned)) {
			flush()
		}
		current.Users = append(current.Users, d)
		weight += len(d.Owned)
	}
	for _, d := range set.Objectives() {
		if !fits(len(d.Owned)) {
			flush()
		}
		current.Objectives = append(current.Objectives, d)
		weight += len(d.Owned)
	}
	for _, d := range set.Initiatives() {
		if !fits(len(d.Owned)) {
			flush()
		}
		current.Initiatives = append(current.Initiatives, d)
		weight += len(d.Owned)
	}
	for _, d := range set.Activities() {
		if !fits(len(d.Owned)) {
			flush()
		}
		current.Activities = append(current.Activities, d)
		weight += len(d.Owned)
	}
	flush()
	return batches
}

func batchFromSet(set *sheet.ClassifiedSet) *sheet.EntityBatch {
	return &sheet.EntityBatch{
		Areas:       set.Areas(),
		Users:       set.Users(),
		Objectives:  set.Objectives(),
		Initiatives: set.Initiatives(),
		Activities:  set.Activities(),
	}
}

func eachDraft(b *sheet.EntityBatch, fn func(sheet.EntityType, *sheet.Draft)) {
	for _, d := range b.Areas {
		fn(sheet.EntityTypeArea, &d.Draft)
	}
	for _, d := range b.Users {
		fn(sheet.EntityTypeUser, &d.Draft)
	}
	for _, d := range b.Objectives {
		fn(sheet.EntityTypeObjective, &d.Draft)
	}
	for _, d := range b.Initiatives {
		fn(sheet.EntityTypeInitiative, &d.Draft)
	}
	for _, d := range b.Activities {
		fn(sheet.EntityTypeActivity, &d.Draft)
	}
}
