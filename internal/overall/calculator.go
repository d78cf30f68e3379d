// Package overall combines the four ranking signals (completeness, SEO,
// lifetime clicks, lifetime enquiries) into one scalar per property.
package overall

import (
	"context"
	"log/slog"

	"github.com/okplace/listrank/internal/counters"
	"github.com/okplace/listrank/internal/ledger"
)

// Signals is the raw four-signal snapshot for a property.
type Signals struct {
	Completeness int     `json:"completeness"`
	Seo          float64 `json:"seo"`
	Clicks       int64   `json:"clicks"`
	Enquiries    int64   `json:"enquiries"`
}

// Overall returns the unweighted arithmetic mean of the four signals.
// Clicks and enquiries are unbounded counts on the same scale as the point
// scores; high-traffic listings can dominate purely on volume. This is a
// deliberate product choice, not an oversight.
func (s Signals) Overall() float64 {
	return (float64(s.Completeness) + s.Seo + float64(s.Clicks) + float64(s.Enquiries)) / 4
}

// IsZero reports whether the property produced no signal on any axis.
func (s Signals) IsZero() bool {
	return s.Completeness == 0 && s.Seo == 0 && s.Clicks == 0 && s.Enquiries == 0
}

// ScoreWriter persists computed overall scores. Implemented by the rank
// store; the rank integer itself is never touched through this interface.
type ScoreWriter interface {
	UpsertOverallScore(ctx context.Context, propertyID string, score float64) error
}

// Calculator reads the four signals and computes the overall score.
type Calculator struct {
	ledger  ledger.Store
	traffic *counters.Aggregator
	writer  ScoreWriter
	logger  *slog.Logger
}

// NewCalculator creates a new Calculator.
func NewCalculator(
	ledgerStore ledger.Store,
	traffic *counters.Aggregator,
	writer ScoreWriter,
	logger *slog.Logger,
) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		ledger:  ledgerStore,
		traffic: traffic,
		writer:  writer,
		logger:  logger,
	}
}

// Snapshot reads the four signals without persisting anything. Every signal
// degrades to zero when its source is unavailable: a missing sub-score or a
// failed counter read is a logged warning, never a hard failure.
func (c *Calculator) Snapshot(ctx context.Context, propertyID string) Signals {
	var sig Signals

	comp, err := c.ledger.GetCompleteness(ctx, propertyID)
	if err != nil {
		c.logger.Warn("completeness score unavailable, treating as zero",
			"property_id", propertyID, "error", err)
	} else if comp != nil {
		sig.Completeness = comp.Score
	}

	seo, err := c.ledger.GetSeo(ctx, propertyID)
	if err != nil {
		c.logger.Warn("seo score unavailable, treating as zero",
			"property_id", propertyID, "error", err)
	} else if seo != nil {
		sig.Seo = seo.Score
	}

	// The aggregator already degrades to zero and logs on its own.
	sig.Clicks = c.traffic.LifetimeTotal(ctx, propertyID, counters.MetricClicks)
	sig.Enquiries = c.traffic.LifetimeTotal(ctx, propertyID, counters.MetricEnquiries)

	return sig
}

// Recompute refreshes the property's overall score and persists it on the
// rank record. Safe to invoke any time content changes outside a batch run;
// only the stored overall_score is updated, never the rank.
func (c *Calculator) Recompute(ctx context.Context, propertyID string) (float64, Signals, error) {
	sig := c.Snapshot(ctx, propertyID)
	score := sig.Overall()

	if err := c.writer.UpsertOverallScore(ctx, propertyID, score); err != nil {
		return 0, sig, err
	}

	c.logger.Debug("overall score recomputed",
		"property_id", propertyID,
		"overall", score,
		"completeness", sig.Completeness,
		"seo", sig.Seo,
		"clicks", sig.Clicks,
		"enquiries", sig.Enquiries)
	return score, sig, nil
}
