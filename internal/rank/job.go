package rank

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/okplace/listrank/internal/completeness"
)

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// Job type labels reported to the centralized job metrics.
const (
	jobTypeRankBatch = "rank_batch"
	jobTypeReconcile = "ledger_reconcile"
)

// DefaultBatchInterval is the default interval between scheduled batch runs.
const DefaultBatchInterval = 15 * time.Minute

// DefaultBatchTimeout is the default timeout for a single batch cycle.
const DefaultBatchTimeout = 5 * time.Minute

// JobConfig configures the scheduled batch job.
type JobConfig struct {
	// Interval is the duration between batch runs.
	Interval time.Duration
	// Timeout for each batch cycle (including the reconcile pre-pass).
	Timeout time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// JobMetrics for centralized background job tracking (optional).
	JobMetrics JobMetrics
	// Reconciler, when set, resyncs ledger completeness scores before each
	// scheduled batch so the incremental delta path cannot drift unbounded.
	Reconciler *completeness.Reconciler
}

// Job periodically runs the batch rank assignor.
type Job struct {
	config   JobConfig
	assignor *Assignor

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewJob creates a new scheduled batch job.
func NewJob(config JobConfig, assignor *Assignor) *Job {
	if config.Interval == 0 {
		config.Interval = DefaultBatchInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultBatchTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Job{
		config:   config,
		assignor: assignor,
	}
}

// Start begins the periodic batch job.
// Returns immediately; the job runs in a background goroutine.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the batch job to stop and waits for it to finish.
func (j *Job) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *Job) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *Job) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("rank batch job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("rank batch job stopping due to stop signal")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

// runOnce executes one scheduled cycle: the optional reconcile pre-pass,
// then the batch itself, under one timeout.
func (j *Job) runOnce(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	if j.config.Reconciler != nil {
		start := time.Now()
		done, failed, err := j.config.Reconciler.ReconcileAll(ctx)
		duration := time.Since(start).Seconds()
		if err != nil {
			j.config.Logger.Error("ledger reconcile pass aborted",
				"reconciled", done,
				"failed", failed,
				"error", err)
			if j.config.JobMetrics != nil {
				j.config.JobMetrics.IncJobsTotal(jobTypeReconcile, "failure")
				j.config.JobMetrics.ObserveJobDuration(jobTypeReconcile, duration)
				j.config.JobMetrics.IncJobErrors(jobTypeReconcile, "aborted")
			}
			return
		}
		if j.config.JobMetrics != nil {
			status := "success"
			if failed > 0 {
				status = "failure"
			}
			j.config.JobMetrics.IncJobsTotal(jobTypeReconcile, status)
			j.config.JobMetrics.ObserveJobDuration(jobTypeReconcile, duration)
		}
		j.config.Logger.Info("ledger reconcile pass completed",
			"reconciled", done,
			"failed", failed,
			"duration_seconds", duration)
	}

	start := time.Now()
	report, err := j.assignor.RunBatch(ctx)
	duration := time.Since(start).Seconds()

	if err != nil {
		var batchErr *BatchError
		processed := 0
		if errors.As(err, &batchErr) {
			processed = batchErr.Processed
		}
		j.config.Logger.Error("scheduled rank batch failed",
			"processed", processed,
			"error", err)
		if j.config.JobMetrics != nil {
			j.config.JobMetrics.IncJobsTotal(jobTypeRankBatch, "failure")
			j.config.JobMetrics.ObserveJobDuration(jobTypeRankBatch, duration)
			j.config.JobMetrics.IncJobErrors(jobTypeRankBatch, "batch_error")
		}
		return
	}

	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncJobsTotal(jobTypeRankBatch, "success")
		j.config.JobMetrics.ObserveJobDuration(jobTypeRankBatch, duration)
	}
	j.config.Logger.Info("scheduled rank batch completed",
		"run_id", report.RunID,
		"ranked", report.RankedCount)
}

// RunNow immediately executes one cycle without waiting for the ticker.
// Useful for testing or forcing immediate updates.
func (j *Job) RunNow() {
	j.runOnce(context.Background())
}
