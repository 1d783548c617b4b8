package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"minrisk/internal/appetite"
	"minrisk/internal/database"
	"minrisk/internal/models"
	"minrisk/internal/notify"
)

// testDB opens a fresh in-memory database per test. The pool is pinned to a
// single connection: every sqlite connection would otherwise get its own
// empty in-memory database.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// fakeEscalator records deliveries instead of posting them anywhere.
type fakeEscalator struct {
	mu    sync.Mutex
	err   error // returned from every Escalate call when set
	calls []escalatorCall
}

type escalatorCall struct {
	contact string
	payload notify.Escalation
}

func (f *fakeEscalator) Escalate(_ context.Context, contact string, e notify.Escalation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, escalatorCall{contact: contact, payload: e})
	return f.err
}

func (f *fakeEscalator) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.payload.Event == event {
			n++
		}
	}
	return n
}

func (f *fakeEscalator) last(event string) (escalatorCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].payload.Event == event {
			return f.calls[i], true
		}
	}
	return escalatorCall{}, false
}

// fixture is one tenant with a category and a risk officer, plus an engine
// whose escalations land in esc.
type fixture struct {
	t    *testing.T
	db   *gorm.DB
	eng  *Engine
	esc  *fakeEscalator
	org  models.Organization
	cat  models.AppetiteCategory
	user models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testDB(t)
	esc := &fakeEscalator{}
	f := &fixture{t: t, db: db, eng: New(db, esc), esc: esc}

	f.org = models.Organization{Name: "Demo Risk Co", Industry: "financial services"}
	require.NoError(t, db.Create(&f.org).Error)

	f.cat = models.AppetiteCategory{
		OrganizationID: f.org.ID,
		Name:           "Operational",
		Appetite:       models.AppetiteLow,
	}
	require.NoError(t, db.Create(&f.cat).Error)

	f.user = models.User{
		OrganizationID: f.org.ID,
		Username:       "officer@minrisk.local",
		PasswordHash:   "irrelevant",
		Role:           models.RoleRiskOfficer,
	}
	require.NoError(t, db.Create(&f.user).Error)

	return f
}

func (f *fixture) indicator(name string) models.Indicator {
	f.t.Helper()
	ind := models.Indicator{OrganizationID: f.org.ID, Name: name, Unit: "count"}
	require.NoError(f.t, f.db.Create(&ind).Error)
	return ind
}

// liveMetric creates a maximum-type metric (green <= 10, amber <= 20)
// breaching point-in-time, fed by its own indicator. Mutators adjust the
// definition before it is stored.
func (f *fixture) liveMetric(name string, mutate ...func(*models.ToleranceMetric)) (models.ToleranceMetric, models.Indicator) {
	f.t.Helper()

	ind := f.indicator(name + " feed")
	m := models.ToleranceMetric{
		OrganizationID:    f.org.ID,
		CategoryID:        f.cat.ID,
		Name:              name,
		MetricType:        appetite.MetricMaximum,
		GreenMax:          10,
		AmberMax:          20,
		BreachRule:        appetite.RulePointInTime,
		AmberContact:      "https://hooks.test/amber",
		RedContact:        "https://hooks.test/red",
		SourceIndicatorID: &ind.ID,
	}
	for _, mut := range mutate {
		mut(&m)
	}
	require.NoError(f.t, f.db.Create(&m).Error)
	return m, ind
}

// observe records a valid reading and requires the engine to accept it.
func (f *fixture) observe(ind models.Indicator, value float64, at time.Time) []EvaluationOutcome {
	f.t.Helper()
	_, outcomes, err := f.eng.RecordObservation(context.Background(), f.org.ID, f.user.ID, ind.ID, value, at, models.QualityValid)
	require.NoError(f.t, err)
	return outcomes
}

// seedObservation inserts a reading directly, bypassing evaluation.
func (f *fixture) seedObservation(ind models.Indicator, value float64, at time.Time) models.Observation {
	f.t.Helper()
	obs := models.Observation{
		OrganizationID: f.org.ID,
		IndicatorID:    ind.ID,
		Value:          value,
		ObservedAt:     at.UTC(),
		Quality:        models.QualityValid,
		RecordedBy:     f.user.ID,
	}
	require.NoError(f.t, f.db.Create(&obs).Error)
	return obs
}

func (f *fixture) activeBreach(metricID uint) models.Breach {
	f.t.Helper()
	var b models.Breach
	require.NoError(f.t, f.db.
		Where("tolerance_metric_id = ? AND status IN ?", metricID, models.ActiveBreachStatuses).
		First(&b).Error)
	return b
}

func (f *fixture) breachCount(metricID uint) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&models.Breach{}).
		Where("tolerance_metric_id = ?", metricID).
		Count(&n).Error)
	return n
}

func (f *fixture) alertCount(event string, breachID uint) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&models.Alert{}).
		Where("event = ? AND subject_type = ? AND subject_id = ?", event, "breach", breachID).
		Count(&n).Error)
	return n
}
