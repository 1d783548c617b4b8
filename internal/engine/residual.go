package engine

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"minrisk/internal/models"
	"minrisk/internal/scoring"
)

// RecalculateRisk re-derives one risk's residual rating from its linked
// controls and persists it. Handlers call this after every write that can
// move the result: rating edits, control link changes, control rescoring.
func (e *Engine) RecalculateRisk(ctx context.Context, orgID, riskID uint) (models.Risk, error) {
	db := e.db.WithContext(ctx)

	var risk models.Risk
	if err := db.Where("organization_id = ?", orgID).First(&risk, riskID).Error; err != nil {
		return models.Risk{}, err
	}
	if err := e.rescoreRisk(db, &risk); err != nil {
		return models.Risk{}, err
	}
	return risk, nil
}

// RescoreControlRisks re-derives every risk linked to a control, used when
// the control's assessment scores change. Returns the rescored risk ids.
func (e *Engine) RescoreControlRisks(ctx context.Context, orgID, controlID uint) ([]uint, error) {
	db := e.db.WithContext(ctx)

	var riskIDs []uint
	err := db.Model(&models.RiskControl{}).
		Where("control_id = ?", controlID).
		Pluck("risk_id", &riskIDs).Error
	if err != nil {
		return nil, fmt.Errorf("load linked risks: %w", err)
	}

	rescored := make([]uint, 0, len(riskIDs))
	for _, id := range riskIDs {
		var risk models.Risk
		if err := db.Where("organization_id = ?", orgID).First(&risk, id).Error; err != nil {
			// a link row pointing at another tenant's risk is never rescored
			continue
		}
		if err := e.rescoreRisk(db, &risk); err != nil {
			return nil, err
		}
		rescored = append(rescored, id)
	}
	return rescored, nil
}

// rescoreRisk computes and stores the residual rating. Only the strongest
// applicable control counts per dimension; a risk with no links keeps its
// inherent ratings.
func (e *Engine) rescoreRisk(db *gorm.DB, risk *models.Risk) error {
	var controls []models.Control
	err := db.
		Joins("JOIN risk_controls ON risk_controls.control_id = controls.id").
		Where("risk_controls.risk_id = ?", risk.ID).
		Find(&controls).Error
	if err != nil {
		return fmt.Errorf("load linked controls: %w", err)
	}

	var likelihoodEffs, impactEffs []float64
	for _, control := range controls {
		eff := scoring.Effectiveness(control.Design, control.Implementation, control.Monitoring, control.Evaluation)
		switch control.Target {
		case models.TargetLikelihood:
			likelihoodEffs = append(likelihoodEffs, eff)
		case models.TargetImpact:
			impactEffs = append(impactEffs, eff)
		case models.TargetBoth:
			likelihoodEffs = append(likelihoodEffs, eff)
			impactEffs = append(impactEffs, eff)
		}
	}

	residual := scoring.Residual(risk.InherentLikelihood, risk.InherentImpact, likelihoodEffs, impactEffs)
	risk.ResidualLikelihood = residual.Likelihood
	risk.ResidualImpact = residual.Impact
	risk.ResidualScore = residual.Score

	return db.Model(risk).Updates(map[string]interface{}{
		"residual_likelihood": residual.Likelihood,
		"residual_impact":     residual.Impact,
		"residual_score":      residual.Score,
	}).Error
}
