// Package engine is the stateful half of the governance core: it turns
// tolerance evaluations into breach records, walks breaches through their
// lifecycle, re-derives residual risk scores when controls change, and
// projects category/enterprise statuses from the breach table. All pure
// arithmetic lives in internal/scoring and internal/appetite; this package
// owns the persistence and concurrency around it.
package engine

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"minrisk/internal/notify"
)

// Sentinel errors surfaced to handlers. Everything else the engine handles
// locally (upsert conflicts, notification failures) and never bubbles up.
var (
	ErrInvalidTransition       = errors.New("illegal breach status transition")
	ErrResolutionNotesRequired = errors.New("resolution notes are required")
	ErrThresholdsLiveFed       = errors.New("thresholds are inherited from the live indicator feed")
	ErrRecalculationInProgress = errors.New("a recalculation for this organization is already running")
	ErrExceptionDecided        = errors.New("exception request has already been decided")
)

// Escalator delivers breach escalations to a contact. Delivery is always
// best-effort: the engine commits state first and treats every error as a
// lost notification, never as a failed transition.
type Escalator interface {
	Escalate(ctx context.Context, contact string, e notify.Escalation) error
}

// Engine evaluates tolerance metrics and manages breach state on top of the
// shared database. One instance serves all organizations; per-organization
// ordering is enforced by the keyed lock registry.
type Engine struct {
	db        *gorm.DB
	escalator Escalator
	locks     *orgLocks
}

func New(db *gorm.DB, escalator Escalator) *Engine {
	return &Engine{
		db:        db,
		escalator: escalator,
		locks:     newOrgLocks(),
	}
}
