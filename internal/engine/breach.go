package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"minrisk/internal/appetite"
	"minrisk/internal/metrics"
	"minrisk/internal/models"
	"minrisk/internal/notify"
)

// escalationTimeout bounds one webhook delivery attempt. Delivery runs off
// the request path, so the timeout protects the notifier, not the caller.
const escalationTimeout = 3 * time.Second

// breachTransitions is the guard table for user-driven status changes.
// Detected never reaches users: a breach is inserted as detected and
// advanced to open inside the same transaction.
var breachTransitions = map[models.BreachStatus][]models.BreachStatus{
	models.BreachOpen:         {models.BreachAcknowledged, models.BreachInProgress, models.BreachResolved, models.BreachBoardAccepted},
	models.BreachAcknowledged: {models.BreachInProgress, models.BreachResolved, models.BreachBoardAccepted},
	models.BreachInProgress:   {models.BreachResolved, models.BreachBoardAccepted},
}

func canTransition(from, to models.BreachStatus) bool {
	for _, next := range breachTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// applyBreach records a rule violation for metric. A single upsert against
// the partial unique index either inserts a fresh breach or folds the
// observation into the active one; severity only ever moves amber -> red in
// SQL, so racing evaluators cannot downgrade or duplicate. Escalations are
// claimed through the alert table and delivered off the request path.
func (e *Engine) applyBreach(db *gorm.DB, metric models.ToleranceMetric, res appetite.Result, p appetite.Point) (models.Breach, error) {
	now := time.Now().UTC()
	fresh := models.Breach{
		OrganizationID:    metric.OrganizationID,
		ToleranceMetricID: metric.ID,
		Ref:               uuid.New(),
		Severity:          res.Severity,
		Status:            models.BreachDetected,
		ObservedValue:     p.Value,
		Variance:          res.Variance,
		DetectedAt:        now,
		LastEvaluatedAt:   now,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tolerance_metric_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "status <> 'resolved' AND status <> 'board_accepted'"},
			}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"severity":          gorm.Expr("CASE WHEN excluded.severity = 'red' THEN 'red' ELSE breaches.severity END"),
				"escalated_at":      gorm.Expr("CASE WHEN breaches.severity = 'amber' AND excluded.severity = 'red' THEN ? ELSE breaches.escalated_at END", now),
				"observed_value":    p.Value,
				"variance":          res.Variance,
				"last_evaluated_at": now,
				"updated_at":        now,
			}),
		}).Create(&fresh).Error
		if err != nil {
			return fmt.Errorf("upsert breach: %w", err)
		}

		// freshly detected rows open before anyone can observe them
		return tx.Model(&models.Breach{}).
			Where("tolerance_metric_id = ? AND status = ?", metric.ID, models.BreachDetected).
			Update("status", models.BreachOpen).Error
	})
	if err != nil {
		return models.Breach{}, err
	}

	var row models.Breach
	if err := db.
		Where("organization_id = ? AND tolerance_metric_id = ? AND status IN ?",
			metric.OrganizationID, metric.ID, models.ActiveBreachStatuses).
		First(&row).Error; err != nil {
		return models.Breach{}, fmt.Errorf("load active breach: %w", err)
	}

	e.fireBreachAlerts(db, metric, row)
	return row, nil
}

// fireBreachAlerts claims the opened/escalated events for row and delivers
// the ones this caller won. The unique alert index makes each event fire at
// most once per breach no matter how many evaluators race.
func (e *Engine) fireBreachAlerts(db *gorm.DB, metric models.ToleranceMetric, row models.Breach) {
	contact := metric.AmberContact
	if row.Severity == appetite.ZoneRed {
		contact = metric.RedContact
	}

	if alert, owned := e.claimAlert(db, row.OrganizationID, notify.EventBreachOpened, row.ID, contact); owned {
		metrics.BreachesOpenedTotal.WithLabelValues(string(row.Severity)).Inc()
		e.deliver(alert.ID, contact, e.escalation(db, metric, row, notify.EventBreachOpened))
	}

	if row.EscalatedAt != nil {
		if alert, owned := e.claimAlert(db, row.OrganizationID, notify.EventBreachEscalated, row.ID, metric.RedContact); owned {
			metrics.BreachesEscalatedTotal.Inc()
			e.deliver(alert.ID, metric.RedContact, e.escalation(db, metric, row, notify.EventBreachEscalated))
		}
	}
}

// claimAlert inserts the (event, subject) row if nobody has. Whoever gets
// the insert owns the delivery; everyone else sees a conflict and moves on.
func (e *Engine) claimAlert(db *gorm.DB, orgID uint, event string, breachID uint, contact string) (models.Alert, bool) {
	alert := models.Alert{
		OrganizationID: orgID,
		Event:          event,
		SubjectType:    "breach",
		SubjectID:      breachID,
		Contact:        contact,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&alert)
	if res.Error != nil {
		log.Printf("failed to record %s alert for breach %d: %v", event, breachID, res.Error)
		return models.Alert{}, false
	}
	return alert, res.RowsAffected == 1
}

func (e *Engine) escalation(db *gorm.DB, metric models.ToleranceMetric, row models.Breach, event string) notify.Escalation {
	var org models.Organization
	_ = db.Select("name").First(&org, row.OrganizationID).Error

	return notify.Escalation{
		Event:        event,
		BreachRef:    row.Ref.String(),
		Organization: org.Name,
		Metric:       metric.Name,
		Severity:     string(row.Severity),
		Value:        row.ObservedValue,
		Variance:     row.Variance,
		DetectedAt:   row.DetectedAt,
	}
}

// deliver posts the escalation off the request path and records the result
// on the alert row. It deliberately runs on the engine's base handle, not
// the request-scoped one: the request may be gone before delivery finishes.
// Failures are logged and never reach the caller; the state transition has
// already committed.
func (e *Engine) deliver(alertID uint, contact string, esc notify.Escalation) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), escalationTimeout)
		defer cancel()

		updates := map[string]interface{}{}
		if err := e.escalator.Escalate(ctx, contact, esc); err != nil {
			log.Printf("escalation %s for breach %s failed: %v", esc.Event, esc.BreachRef, err)
			updates["error"] = err.Error()
		} else {
			updates["delivered"] = true
			updates["delivered_at"] = time.Now().UTC()
		}
		if err := e.db.Model(&models.Alert{}).Where("id = ?", alertID).Updates(updates).Error; err != nil {
			log.Printf("failed to record delivery result for alert %d: %v", alertID, err)
		}
	}()
}

// loadBreach fetches one breach scoped to the organization.
func (e *Engine) loadBreach(db *gorm.DB, orgID, breachID uint) (models.Breach, error) {
	var b models.Breach
	err := db.Where("organization_id = ?", orgID).First(&b, breachID).Error
	return b, err
}

// transition applies one guarded user-driven status change.
func (e *Engine) transition(db *gorm.DB, b *models.Breach, to models.BreachStatus, updates map[string]interface{}) error {
	if !canTransition(b.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	updates["status"] = to
	return db.Model(b).Updates(updates).Error
}

// AcknowledgeBreach moves an open breach to acknowledged.
func (e *Engine) AcknowledgeBreach(ctx context.Context, orgID, breachID, userID uint) (models.Breach, error) {
	db := e.db.WithContext(ctx)
	b, err := e.loadBreach(db, orgID, breachID)
	if err != nil {
		return models.Breach{}, err
	}
	if err := e.transition(db, &b, models.BreachAcknowledged, map[string]interface{}{
		"acknowledged_by": userID,
	}); err != nil {
		return models.Breach{}, err
	}
	return b, nil
}

// StartRemediation attaches a remediation plan and moves the breach to
// in_progress.
func (e *Engine) StartRemediation(ctx context.Context, orgID, breachID, userID uint, plan string) (models.Breach, error) {
	db := e.db.WithContext(ctx)
	b, err := e.loadBreach(db, orgID, breachID)
	if err != nil {
		return models.Breach{}, err
	}
	if err := e.transition(db, &b, models.BreachInProgress, map[string]interface{}{
		"remediation_plan": plan,
	}); err != nil {
		return models.Breach{}, err
	}
	return b, nil
}

// ResolveBreach closes a breach on operator attestation. Notes are
// mandatory; the underlying value is not required to be green again.
func (e *Engine) ResolveBreach(ctx context.Context, orgID, breachID, userID uint, notes string) (models.Breach, error) {
	if notes == "" {
		return models.Breach{}, ErrResolutionNotesRequired
	}
	db := e.db.WithContext(ctx)
	b, err := e.loadBreach(db, orgID, breachID)
	if err != nil {
		return models.Breach{}, err
	}
	now := time.Now().UTC()
	if err := e.transition(db, &b, models.BreachResolved, map[string]interface{}{
		"resolution_notes": notes,
		"resolved_at":      now,
	}); err != nil {
		return models.Breach{}, err
	}
	return b, nil
}

// ExceptionRequest carries a proposed board exception: adjusted bounds for
// the metric's type plus an expiry after which the permanent thresholds
// govern again.
type ExceptionRequest struct {
	Justification string
	ExpiresAt     time.Time

	GreenMax  float64
	AmberMax  float64
	GreenMin  float64
	AmberMin  float64
	GreenLow  float64
	GreenHigh float64
	AmberLow  float64
	AmberHigh float64
}

// RequestException files a pending threshold override for the breached
// metric. The breach keeps its current status until the board decides.
func (e *Engine) RequestException(ctx context.Context, orgID, breachID, userID uint, req ExceptionRequest) (models.ThresholdOverride, error) {
	db := e.db.WithContext(ctx)
	b, err := e.loadBreach(db, orgID, breachID)
	if err != nil {
		return models.ThresholdOverride{}, err
	}
	// board acceptance must still be a legal exit when the request is decided
	if !canTransition(b.Status, models.BreachBoardAccepted) {
		return models.ThresholdOverride{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, models.BreachBoardAccepted)
	}

	override := models.ThresholdOverride{
		OrganizationID:    orgID,
		ToleranceMetricID: b.ToleranceMetricID,
		BreachID:          b.ID,
		Status:            models.OverridePending,
		GreenMax:          req.GreenMax,
		AmberMax:          req.AmberMax,
		GreenMin:          req.GreenMin,
		AmberMin:          req.AmberMin,
		GreenLow:          req.GreenLow,
		GreenHigh:         req.GreenHigh,
		AmberLow:          req.AmberLow,
		AmberHigh:         req.AmberHigh,
		Justification:     req.Justification,
		RequestedBy:       userID,
		ExpiresAt:         req.ExpiresAt,
	}
	if err := db.Create(&override).Error; err != nil {
		return models.ThresholdOverride{}, err
	}
	return override, nil
}

// DecideException approves or rejects a pending board exception. Approval
// moves the breach to board_accepted and the adjusted bounds start layering
// over the permanent thresholds until they expire.
func (e *Engine) DecideException(ctx context.Context, orgID, overrideID, userID uint, approve bool) (models.ThresholdOverride, error) {
	db := e.db.WithContext(ctx)

	var override models.ThresholdOverride
	if err := db.Where("organization_id = ?", orgID).First(&override, overrideID).Error; err != nil {
		return models.ThresholdOverride{}, err
	}
	if override.Status != models.OverridePending {
		return models.ThresholdOverride{}, ErrExceptionDecided
	}

	if !approve {
		err := db.Model(&override).Updates(map[string]interface{}{
			"status":     models.OverrideRejected,
			"decided_by": userID,
		}).Error
		return override, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		b, err := e.loadBreach(tx, orgID, override.BreachID)
		if err != nil {
			return err
		}
		if err := e.transition(tx, &b, models.BreachBoardAccepted, map[string]interface{}{}); err != nil {
			return err
		}
		return tx.Model(&override).Updates(map[string]interface{}{
			"status":     models.OverrideApproved,
			"decided_by": userID,
		}).Error
	})
	if err != nil {
		return models.ThresholdOverride{}, err
	}
	return override, nil
}
