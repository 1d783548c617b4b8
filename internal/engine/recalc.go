package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"minrisk/internal/appetite"
	"minrisk/internal/metrics"
	"minrisk/internal/models"
)

// recalcWorkers bounds the fan-out of one organization-wide pass.
const recalcWorkers = 8

// RecalcSummary reports what one organization-wide recalculation touched.
type RecalcSummary struct {
	RisksRescored    int    `json:"risks_rescored"`
	MetricsEvaluated int    `json:"metrics_evaluated"`
	BreachesRaised   int    `json:"breaches_raised"`
	Elapsed          string `json:"elapsed"`
}

// RecalculateOrganization re-derives every risk's residual rating and
// re-evaluates every live-fed tolerance metric against its latest valid
// observation. The pass holds the organization's write lock: a concurrent
// request for the same organization is rejected with
// ErrRecalculationInProgress while other organizations run in parallel.
func (e *Engine) RecalculateOrganization(ctx context.Context, orgID uint) (RecalcSummary, error) {
	lock := e.locks.get(orgID)
	if !lock.TryLock() {
		metrics.RecalculationsTotal.WithLabelValues("rejected").Inc()
		return RecalcSummary{}, ErrRecalculationInProgress
	}
	defer lock.Unlock()

	start := time.Now()
	db := e.db.WithContext(ctx)

	rescored, err := e.recalcRisks(ctx, db, orgID)
	if err != nil {
		metrics.RecalculationsTotal.WithLabelValues("failed").Inc()
		return RecalcSummary{}, err
	}

	evaluated, raised, err := e.recalcMetrics(ctx, db, orgID)
	if err != nil {
		metrics.RecalculationsTotal.WithLabelValues("failed").Inc()
		return RecalcSummary{}, err
	}

	elapsed := time.Since(start)
	metrics.RecalculationsTotal.WithLabelValues("completed").Inc()
	metrics.RecalcDuration.Observe(elapsed.Seconds())

	return RecalcSummary{
		RisksRescored:    rescored,
		MetricsEvaluated: evaluated,
		BreachesRaised:   raised,
		Elapsed:          elapsed.Round(time.Millisecond).String(),
	}, nil
}

func (e *Engine) recalcRisks(ctx context.Context, db *gorm.DB, orgID uint) (int, error) {
	var riskIDs []uint
	if err := db.Model(&models.Risk{}).
		Where("organization_id = ?", orgID).
		Pluck("id", &riskIDs).Error; err != nil {
		return 0, err
	}

	var rescored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recalcWorkers)
	for _, id := range riskIDs {
		id := id // per-iteration copy; module built with pre-1.22 loop scoping
		g.Go(func() error {
			gdb := e.db.WithContext(gctx)
			var risk models.Risk
			if err := gdb.Where("organization_id = ?", orgID).First(&risk, id).Error; err != nil {
				return err
			}
			if err := e.rescoreRisk(gdb, &risk); err != nil {
				return err
			}
			rescored.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(rescored.Load()), err
	}
	return int(rescored.Load()), nil
}

func (e *Engine) recalcMetrics(ctx context.Context, db *gorm.DB, orgID uint) (int, int, error) {
	var fed []models.ToleranceMetric
	if err := db.
		Where("organization_id = ? AND source_indicator_id IS NOT NULL", orgID).
		Find(&fed).Error; err != nil {
		return 0, 0, err
	}

	var evals, breaches atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recalcWorkers)
	for _, metric := range fed {
		metric := metric // per-iteration copy; module built with pre-1.22 loop scoping
		g.Go(func() error {
			gdb := e.db.WithContext(gctx)

			var latest models.Observation
			err := gdb.
				Where("organization_id = ? AND indicator_id = ? AND quality = ?",
					orgID, *metric.SourceIndicatorID, models.QualityValid).
				Order("observed_at DESC").
				First(&latest).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// a feed with no readings yet has nothing to evaluate
				return nil
			}
			if err != nil {
				return err
			}

			out, err := e.evaluateMetric(gdb, metric, appetite.Point{Value: latest.Value, At: latest.ObservedAt}, latest.ID)
			if err != nil {
				return err
			}
			evals.Add(1)
			if out.Breach {
				breaches.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(evals.Load()), int(breaches.Load()), err
	}
	return int(evals.Load()), int(breaches.Load()), nil
}
