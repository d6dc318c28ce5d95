package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/aggregates/importjob"
	"github.com/stratix-hq/stratix-sdk/pkg/eventbus"
)

// ProgressEvent is published on the event bus whenever a job's counters move
// or its status changes. Percentage is 0..100; ETA is a best-effort estimate
// extrapolated from the observed row throughput and is zero until at least one
// batch has finished.
type ProgressEvent struct {
	JobID        uuid.UUID
	Status       importjob.Status
	Percentage   float64
	Processed    int
	Total        int
	Succeeded    int
	Failed       int
	ETA          time.Duration
	CurrentBatch int
	TotalBatches int
}

// ProgressEmitter tracks a single running job and publishes ProgressEvents.
// Safe for use from one goroutine; the bus handles fan-out.
type ProgressEmitter struct {
	bus     eventbus.EventBus
	jobID   uuid.UUID
	started time.Time

	mu           sync.Mutex
	totalBatches int
	currentBatch int
}

func NewProgressEmitter(bus eventbus.EventBus, jobID uuid.UUID) *ProgressEmitter {
	return &ProgressEmitter{bus: bus, jobID: jobID, started: time.Now()}
}

func (e *ProgressEmitter) SetBatchPlan(total int) {
	e.mu.Lock()
	e.totalBatches = total
	e.mu.Unlock()
}

func (e *ProgressEmitter) BatchDone() {
	e.mu.Lock()
	e.currentBatch++
	e.mu.Unlock()
}

// Emit snapshots the job and publishes a ProgressEvent. Nil-bus emitters are
// valid and drop events, which keeps callers free of nil checks.
func (e *ProgressEmitter) Emit(job *importjob.ImportJob) {
	if e == nil || e.bus == nil {
		return
	}

	e.mu.Lock()
	current, total := e.currentBatch, e.totalBatches
	e.mu.Unlock()

	processed := job.ProcessedRows()
	totalRows := job.TotalRows()

	ev := ProgressEvent{
		JobID:        e.jobID,
		Status:       job.Status(),
		Processed:    processed,
		Total:        totalRows,
		Succeeded:    job.SuccessRows(),
		Failed:       job.ErrorRows(),
		CurrentBatch: current,
		TotalBatches: total,
	}
	if totalRows > 0 {
		ev.Percentage = float64(processed) / float64(totalRows) * 100
		if ev.Percentage > 100 {
			ev.Percentage = 100
		}
	}
	if job.Status().IsTerminal() {
		ev.Percentage = 100
	}
	if processed > 0 && processed < totalRows {
		elapsed := time.Since(e.started)
		perRow := elapsed / time.Duration(processed)
		ev.ETA = perRow * time.Duration(totalRows-processed)
	}

	e.bus.Publish(ev)
}
