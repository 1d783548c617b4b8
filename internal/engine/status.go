package engine

import (
	"context"
	"time"

	"minrisk/internal/appetite"
	"minrisk/internal/models"
)

// CategoryStatus is one appetite category's read-time rollup.
type CategoryStatus struct {
	CategoryID     uint                 `json:"category_id"`
	Name           string               `json:"name"`
	Appetite       models.AppetiteLevel `json:"appetite"`
	Status         appetite.Zone        `json:"status"`
	Metrics        int                  `json:"metrics"`
	ActiveBreaches int                  `json:"active_breaches"`
}

// GovernanceStatus is the category and enterprise rollup. It is a pure
// projection over breach records recomputed on every call; nothing caches
// it as ground truth.
type GovernanceStatus struct {
	Enterprise appetite.Zone    `json:"enterprise"`
	Categories []CategoryStatus `json:"categories"`
	ComputedAt time.Time        `json:"computed_at"`
}

// Status derives the per-category and enterprise standing from the active
// breaches of one organization: each category is the worst severity among
// its metrics' active breaches, the enterprise is the worst category.
func (e *Engine) Status(ctx context.Context, orgID uint) (GovernanceStatus, error) {
	db := e.db.WithContext(ctx)

	var categories []models.AppetiteCategory
	if err := db.Where("organization_id = ?", orgID).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return GovernanceStatus{}, err
	}

	type categoryBreach struct {
		CategoryID uint
		Severity   appetite.Zone
	}
	var active []categoryBreach
	err := db.Model(&models.Breach{}).
		Select("tolerance_metrics.category_id AS category_id, breaches.severity AS severity").
		Joins("JOIN tolerance_metrics ON tolerance_metrics.id = breaches.tolerance_metric_id").
		Where("breaches.organization_id = ? AND breaches.status IN ?", orgID, models.ActiveBreachStatuses).
		Scan(&active).Error
	if err != nil {
		return GovernanceStatus{}, err
	}

	type metricCount struct {
		CategoryID uint
		Total      int
	}
	var counts []metricCount
	err = db.Model(&models.ToleranceMetric{}).
		Select("category_id, COUNT(*) AS total").
		Where("organization_id = ?", orgID).
		Group("category_id").
		Scan(&counts).Error
	if err != nil {
		return GovernanceStatus{}, err
	}
	metricsPerCategory := make(map[uint]int, len(counts))
	for _, c := range counts {
		metricsPerCategory[c.CategoryID] = c.Total
	}

	severities := make(map[uint][]appetite.Zone)
	breachesPerCategory := make(map[uint]int)
	for _, b := range active {
		severities[b.CategoryID] = append(severities[b.CategoryID], b.Severity)
		breachesPerCategory[b.CategoryID]++
	}

	status := GovernanceStatus{
		Categories: make([]CategoryStatus, 0, len(categories)),
		ComputedAt: time.Now().UTC(),
	}
	enterprise := make([]appetite.Zone, 0, len(categories))
	for _, cat := range categories {
		zone := appetite.Worst(severities[cat.ID]...)
		enterprise = append(enterprise, zone)
		status.Categories = append(status.Categories, CategoryStatus{
			CategoryID:     cat.ID,
			Name:           cat.Name,
			Appetite:       cat.Appetite,
			Status:         zone,
			Metrics:        metricsPerCategory[cat.ID],
			ActiveBreaches: breachesPerCategory[cat.ID],
		})
	}
	status.Enterprise = appetite.Worst(enterprise...)
	return status, nil
}
