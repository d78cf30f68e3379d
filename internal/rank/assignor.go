package rank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okplace/listrank/internal/overall"
	"github.com/okplace/listrank/internal/property"
	"github.com/okplace/listrank/internal/tracing"
)

// DefaultGatherWorkers bounds the parallel signal reads during the gather phase.
const DefaultGatherWorkers = 8

// Assignor runs the batch ranking algorithm over the whole catalog.
//
// A run has three phases with a strict ordering: gather every property's
// signals into one consistent snapshot, compute the full ordering in memory,
// then write. Interleaving signal reads with rank writes would corrupt the
// total order, so the phases never overlap.
type Assignor struct {
	registry property.Repository
	calc     *overall.Calculator
	store    Store
	logger   *slog.Logger
	metrics  *Metrics
	workers  int
}

// AssignorConfig configures an Assignor.
type AssignorConfig struct {
	// Logger for batch activity.
	Logger *slog.Logger
	// Metrics for batch performance tracking (optional).
	Metrics *Metrics
	// GatherWorkers bounds parallel signal reads. Defaults to DefaultGatherWorkers.
	GatherWorkers int
}

// NewAssignor creates a new Assignor.
func NewAssignor(
	registry property.Repository,
	calc *overall.Calculator,
	store Store,
	config AssignorConfig,
) *Assignor {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.GatherWorkers <= 0 {
		config.GatherWorkers = DefaultGatherWorkers
	}
	return &Assignor{
		registry: registry,
		calc:     calc,
		store:    store,
		logger:   config.Logger,
		metrics:  config.Metrics,
		workers:  config.GatherWorkers,
	}
}

// candidate is one property's gathered state during a batch run.
type candidate struct {
	prop    property.Property
	signals overall.Signals
	score   float64
}

// RunBatch recomputes ranks for every known property.
//
// Properties are partitioned into an active set (any positive signal) and a
// zero set (no signal on any axis). The active set is sorted by the
// descending five-way cascade; the zero set by creation time ascending, so
// tenure decides among otherwise indistinguishable listings. Active ranks
// strictly precede zero ranks, and the final assignment is a dense
// permutation 1..N written atomically.
func (a *Assignor) RunBatch(ctx context.Context) (report *BatchReport, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "rank_batch")
	defer func() { endSpan(err) }()

	start := time.Now()
	runID := uuid.New().String()

	props, err := a.registry.List(ctx)
	if err != nil {
		a.recordFailure(start)
		return nil, &BatchError{Processed: 0, Err: fmt.Errorf("failed to list properties: %w", err)}
	}

	a.logger.Info("starting rank batch",
		"run_id", runID,
		"property_count", len(props))

	cands, err := a.gather(ctx, props)
	if err != nil {
		a.recordFailure(start)
		return nil, &BatchError{Processed: len(cands), Err: err}
	}

	ordered, activeCount := order(cands)

	previous, err := a.store.All(ctx)
	if err != nil {
		a.recordFailure(start)
		return nil, &BatchError{Processed: len(cands), Err: fmt.Errorf("failed to read previous ranks: %w", err)}
	}
	prevByID := make(map[string]Record, len(previous))
	for _, rec := range previous {
		prevByID[rec.PropertyID] = rec
	}

	records := assign(ordered, prevByID)

	// Last cancellation point before anything is committed.
	if err := ctx.Err(); err != nil {
		a.recordFailure(start)
		return nil, &BatchError{Processed: len(cands), Err: err}
	}

	if err := a.store.ApplyRanks(ctx, records); err != nil {
		a.recordFailure(start)
		return nil, &BatchError{Processed: 0, Err: err}
	}

	duration := time.Since(start)
	report = &BatchReport{
		RunID:       runID,
		RankedCount: len(records),
		ActiveCount: activeCount,
		ZeroCount:   len(records) - activeCount,
		Duration:    duration,
	}

	if a.metrics != nil {
		a.metrics.IncBatchTotal()
		a.metrics.ObserveBatchDuration(duration.Seconds())
		a.metrics.SetLastBatchTimestamp(float64(time.Now().Unix()))
		a.metrics.SetLastBatchRankedCount(float64(report.RankedCount))
	}

	a.logger.Info("rank batch completed",
		"run_id", runID,
		"duration_seconds", duration.Seconds(),
		"ranked", report.RankedCount,
		"active", report.ActiveCount,
		"zero", report.ZeroCount)
	return report, nil
}

// gather reads every property's signals with a bounded worker pool. A single
// property's signal failures degrade that property to all-zero signals (the
// calculator already substitutes zero per signal); only cancellation aborts
// the phase.
func (a *Assignor) gather(ctx context.Context, props []property.Property) ([]candidate, error) {
	cands := make([]candidate, len(props))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < a.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sig := a.calc.Snapshot(ctx, props[i].ID)
				cands[i] = candidate{
					prop:    props[i],
					signals: sig,
					score:   sig.Overall(),
				}
			}
		}()
	}

	var cancelled bool
	for i := range props {
		select {
		case <-ctx.Done():
			cancelled = true
		case jobs <- i:
		}
		if cancelled {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}
	return cands, nil
}

// order partitions the candidates and produces the final list order.
// Returns the ordered candidates and the size of the active set.
func order(cands []candidate) ([]candidate, int) {
	var active, zero []candidate
	for _, c := range cands {
		if c.signals.IsZero() {
			zero = append(zero, c)
		} else {
			active = append(active, c)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return keyFor(active[i].score, active[i].signals).less(keyFor(active[j].score, active[j].signals))
	})
	// Oldest listings first: tenure is rewarded among zero-signal properties
	// rather than leaving them in arbitrary order at the bottom.
	sort.SliceStable(zero, func(i, j int) bool {
		return zero[i].prop.CreatedAt.Before(zero[j].prop.CreatedAt)
	})

	return append(active, zero...), len(active)
}

// assign produces the dense 1..N rank records, carrying last_rank forward
// per the movement rules: last_rank changes only when rank changes.
func assign(ordered []candidate, previous map[string]Record) []Record {
	records := make([]Record, 0, len(ordered))
	for i, c := range ordered {
		newRank := i + 1
		rec := Record{
			PropertyID:   c.prop.ID,
			Rank:         newRank,
			OverallScore: c.score,
		}

		if prev, ok := previous[c.prop.ID]; ok {
			if prev.Rank != newRank {
				prevRank := prev.Rank
				rec.LastRank = &prevRank
			} else {
				rec.LastRank = prev.LastRank
			}
		}
		records = append(records, rec)
	}
	return records
}

func (a *Assignor) recordFailure(start time.Time) {
	if a.metrics != nil {
		a.metrics.IncBatchErrors()
		a.metrics.ObserveBatchDuration(time.Since(start).Seconds())
	}
}
