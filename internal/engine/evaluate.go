package engine

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"minrisk/internal/appetite"
	"minrisk/internal/metrics"
	"minrisk/internal/models"
)

// historyDepth bounds the observation window loaded per evaluation. The
// evaluator itself is pure over whatever history it is handed; this is the
// depth of the append-only log one evaluation looks back over.
const historyDepth = 180

// EvaluationOutcome reports what one observation did to one live-fed
// tolerance metric.
type EvaluationOutcome struct {
	MetricID   uint          `json:"metric_id"`
	MetricName string        `json:"metric_name"`
	Zone       appetite.Zone `json:"zone"`
	Rate       float64       `json:"rate,omitempty"`
	Breach     bool          `json:"breach"`
	Severity   appetite.Zone `json:"severity,omitempty"`
	BreachID   uint          `json:"breach_id,omitempty"`
	BreachRef  string        `json:"breach_ref,omitempty"`
}

// RecordObservation appends one reading to an indicator's log and evaluates
// every tolerance metric live-fed by that indicator. Suspect readings are
// stored for the record but never evaluated and never enter history.
func (e *Engine) RecordObservation(ctx context.Context, orgID, userID, indicatorID uint, value float64, observedAt time.Time, quality models.ObservationQuality) (models.Observation, []EvaluationOutcome, error) {
	db := e.db.WithContext(ctx)

	var indicator models.Indicator
	if err := db.Where("organization_id = ?", orgID).First(&indicator, indicatorID).Error; err != nil {
		return models.Observation{}, nil, err
	}

	obs := models.Observation{
		OrganizationID: orgID,
		IndicatorID:    indicator.ID,
		Value:          value,
		ObservedAt:     observedAt.UTC(),
		Quality:        quality,
		RecordedBy:     userID,
	}
	if err := db.Create(&obs).Error; err != nil {
		return models.Observation{}, nil, fmt.Errorf("record observation: %w", err)
	}

	if quality == models.QualitySuspect {
		return obs, nil, nil
	}

	var fed []models.ToleranceMetric
	if err := db.Where("organization_id = ? AND source_indicator_id = ?", orgID, indicator.ID).
		Find(&fed).Error; err != nil {
		return obs, nil, err
	}
	if len(fed) == 0 {
		return obs, nil, nil
	}

	// shared side of the org lock: never interleaves with a bulk pass
	lock := e.locks.get(orgID)
	lock.RLock()
	defer lock.RUnlock()

	outcomes := make([]EvaluationOutcome, 0, len(fed))
	for _, metric := range fed {
		out, err := e.evaluateMetric(db, metric, appetite.Point{Value: value, At: obs.ObservedAt}, obs.ID)
		if err != nil {
			return obs, outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return obs, outcomes, nil
}

// evaluateMetric runs one pure evaluation of a live-fed metric and applies
// the breach decision. current is the observation under evaluation;
// excludeObsID keeps it out of its own history.
func (e *Engine) evaluateMetric(db *gorm.DB, metric models.ToleranceMetric, current appetite.Point, excludeObsID uint) (EvaluationOutcome, error) {
	history, err := e.history(db, metric, current, excludeObsID)
	if err != nil {
		return EvaluationOutcome{}, err
	}

	thresholds := e.effectiveThresholds(db, metric, time.Now().UTC())
	rule := appetite.Rule{
		Kind:       metric.BreachRule,
		Count:      metric.RuleCount,
		WindowDays: metric.RuleWindowDays,
	}

	res := appetite.Evaluate(thresholds, rule, current, history)
	metrics.EvaluationsTotal.WithLabelValues(string(res.Zone)).Inc()

	out := EvaluationOutcome{
		MetricID:   metric.ID,
		MetricName: metric.Name,
		Zone:       res.Zone,
		Rate:       res.Rate,
	}
	if !res.Breach {
		return out, nil
	}

	row, err := e.applyBreach(db, metric, res, current)
	if err != nil {
		return out, err
	}
	out.Breach = true
	out.Severity = row.Severity
	out.BreachID = row.ID
	out.BreachRef = row.Ref.String()
	return out, nil
}

// history loads the evaluation-grade observations preceding current from
// the metric's feed, oldest first.
func (e *Engine) history(db *gorm.DB, metric models.ToleranceMetric, current appetite.Point, excludeObsID uint) ([]appetite.Point, error) {
	if metric.SourceIndicatorID == nil {
		return nil, nil
	}

	var rows []models.Observation
	err := db.
		Where("organization_id = ? AND indicator_id = ? AND quality = ? AND observed_at <= ? AND id <> ?",
			metric.OrganizationID, *metric.SourceIndicatorID, models.QualityValid, current.At, excludeObsID).
		Order("observed_at DESC").
		Limit(historyDepth).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load observation history: %w", err)
	}

	points := make([]appetite.Point, len(rows))
	for i, row := range rows {
		points[len(rows)-1-i] = appetite.Point{Value: row.Value, At: row.ObservedAt}
	}
	return points, nil
}

// effectiveThresholds returns the metric's permanent bounds unless an
// approved, unexpired board exception layers adjusted ones over them. The
// permanent definition is never mutated, so expiry is just this overlay
// seeing no override.
func (e *Engine) effectiveThresholds(db *gorm.DB, metric models.ToleranceMetric, now time.Time) appetite.Thresholds {
	thresholds := appetite.Thresholds{
		Type:         metric.MetricType,
		GreenMax:     metric.GreenMax,
		AmberMax:     metric.AmberMax,
		GreenMin:     metric.GreenMin,
		AmberMin:     metric.AmberMin,
		GreenLow:     metric.GreenLow,
		GreenHigh:    metric.GreenHigh,
		AmberLow:     metric.AmberLow,
		AmberHigh:    metric.AmberHigh,
		LookbackDays: metric.LookbackDays,
	}

	var override models.ThresholdOverride
	err := db.
		Where("tolerance_metric_id = ? AND status = ? AND expires_at > ?",
			metric.ID, models.OverrideApproved, now).
		Order("expires_at DESC").
		First(&override).Error
	if err != nil {
		return thresholds
	}

	thresholds.GreenMax = override.GreenMax
	thresholds.AmberMax = override.AmberMax
	thresholds.GreenMin = override.GreenMin
	thresholds.AmberMin = override.AmberMin
	thresholds.GreenLow = override.GreenLow
	thresholds.GreenHigh = override.GreenHigh
	thresholds.AmberLow = override.AmberLow
	thresholds.AmberHigh = override.AmberHigh
	return thresholds
}
