package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"minrisk/internal/appetite"
	"minrisk/internal/models"
	"minrisk/internal/notify"
)

func TestRecordObservationGreenStaysQuiet(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("open critical findings")

	outcomes := f.observe(ind, 5, time.Now().UTC())

	require.Len(t, outcomes, 1)
	assert.Equal(t, appetite.ZoneGreen, outcomes[0].Zone)
	assert.False(t, outcomes[0].Breach)
	assert.EqualValues(t, 0, f.breachCount(metric.ID))
	assert.Zero(t, f.esc.count(notify.EventBreachOpened))
}

func TestRecordObservationOpensBreach(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("open critical findings")

	outcomes := f.observe(ind, 15, time.Now().UTC())

	require.Len(t, outcomes, 1)
	out := outcomes[0]
	assert.Equal(t, appetite.ZoneAmber, out.Zone)
	assert.True(t, out.Breach)
	assert.Equal(t, appetite.ZoneAmber, out.Severity)
	assert.NotZero(t, out.BreachID)
	assert.NotEmpty(t, out.BreachRef)

	b := f.activeBreach(metric.ID)
	assert.Equal(t, models.BreachOpen, b.Status)
	assert.Equal(t, appetite.ZoneAmber, b.Severity)
	assert.Equal(t, 15.0, b.ObservedValue)
	assert.Equal(t, 5.0, b.Variance)
	assert.Nil(t, b.EscalatedAt)
	assert.EqualValues(t, 1, f.alertCount(notify.EventBreachOpened, b.ID))

	assert.Eventually(t, func() bool {
		return f.esc.count(notify.EventBreachOpened) == 1
	}, time.Second, 10*time.Millisecond)

	call, ok := f.esc.last(notify.EventBreachOpened)
	require.True(t, ok)
	assert.Equal(t, "https://hooks.test/amber", call.contact)
	assert.Equal(t, b.Ref.String(), call.payload.BreachRef)
	assert.Equal(t, "Demo Risk Co", call.payload.Organization)
	assert.Equal(t, "open critical findings", call.payload.Metric)

	// delivery result lands on the alert row off the request path
	assert.Eventually(t, func() bool {
		var alert models.Alert
		err := f.db.Where("event = ? AND subject_id = ?", notify.EventBreachOpened, b.ID).First(&alert).Error
		return err == nil && alert.Delivered && alert.DeliveredAt != nil
	}, time.Second, 10*time.Millisecond)
}

func TestRepeatViolationFoldsIntoActiveBreach(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("open critical findings")
	t0 := time.Now().UTC()

	f.observe(ind, 15, t0)
	first := f.activeBreach(metric.ID)

	f.observe(ind, 18, t0.Add(time.Hour))

	assert.EqualValues(t, 1, f.breachCount(metric.ID))
	again := f.activeBreach(metric.ID)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 18.0, again.ObservedValue)
	assert.Equal(t, 8.0, again.Variance)
	assert.True(t, again.DetectedAt.Equal(first.DetectedAt))
	assert.False(t, again.LastEvaluatedAt.Before(first.LastEvaluatedAt))

	// the opening event stays claimed: one alert row, no matter how often
	// the violation recurs
	assert.EqualValues(t, 1, f.alertCount(notify.EventBreachOpened, first.ID))
}

func TestSeverityEscalatesAndNeverDowngrades(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("open critical findings")
	t0 := time.Now().UTC()

	f.observe(ind, 15, t0) // amber
	b := f.activeBreach(metric.ID)
	_, err := f.eng.AcknowledgeBreach(context.Background(), f.org.ID, b.ID, f.user.ID)
	require.NoError(t, err)

	f.observe(ind, 25, t0.Add(time.Hour)) // red

	b = f.activeBreach(metric.ID)
	assert.Equal(t, appetite.ZoneRed, b.Severity)
	assert.Equal(t, models.BreachAcknowledged, b.Status, "escalation must not reset workflow state")
	require.NotNil(t, b.EscalatedAt)
	assert.EqualValues(t, 1, f.alertCount(notify.EventBreachEscalated, b.ID))

	// still red when the value sinks back to amber; zones never downgrade
	f.observe(ind, 12, t0.Add(2*time.Hour))
	b = f.activeBreach(metric.ID)
	assert.Equal(t, appetite.ZoneRed, b.Severity)

	// the escalated event is claimed once for the life of the breach
	f.observe(ind, 30, t0.Add(3*time.Hour))
	assert.EqualValues(t, 1, f.alertCount(notify.EventBreachEscalated, b.ID))

	assert.Eventually(t, func() bool {
		return f.esc.count(notify.EventBreachEscalated) == 1
	}, time.Second, 10*time.Millisecond)
	call, ok := f.esc.last(notify.EventBreachEscalated)
	require.True(t, ok)
	assert.Equal(t, "https://hooks.test/red", call.contact)
}

func TestRedBreachOpensWithRedContact(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("open critical findings")

	f.observe(ind, 42, time.Now().UTC())

	b := f.activeBreach(metric.ID)
	assert.Equal(t, appetite.ZoneRed, b.Severity)
	assert.Nil(t, b.EscalatedAt, "opening red is not an escalation")
	assert.Eventually(t, func() bool {
		return f.esc.count(notify.EventBreachOpened) == 1
	}, time.Second, 10*time.Millisecond)
	call, _ := f.esc.last(notify.EventBreachOpened)
	assert.Equal(t, "https://hooks.test/red", call.contact)
}

func TestBreachLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("open critical findings")
	ctx := context.Background()

	f.observe(ind, 15, time.Now().UTC())
	b := f.activeBreach(metric.ID)

	_, err := f.eng.StartRemediation(ctx, f.org.ID, b.ID, f.user.ID, "rotate the leaked credentials")
	require.NoError(t, err)

	// no way back from in_progress to acknowledged
	_, err = f.eng.AcknowledgeBreach(ctx, f.org.ID, b.ID, f.user.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.eng.ResolveBreach(ctx, f.org.ID, b.ID, f.user.ID, "")
	assert.ErrorIs(t, err, ErrResolutionNotesRequired)

	_, err = f.eng.ResolveBreach(ctx, f.org.ID, b.ID, f.user.ID, "credentials rotated, scanner re-run clean")
	require.NoError(t, err)

	var closed models.Breach
	require.NoError(t, f.db.First(&closed, b.ID).Error)
	assert.Equal(t, models.BreachResolved, closed.Status)
	assert.Equal(t, "rotate the leaked credentials", closed.RemediationPlan)
	assert.Equal(t, "credentials rotated, scanner re-run clean", closed.ResolutionNotes)
	require.NotNil(t, closed.ResolvedAt)

	// resolved is terminal
	_, err = f.eng.AcknowledgeBreach(ctx, f.org.ID, b.ID, f.user.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolvedMetricCanBreachAgain(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("open critical findings")
	t0 := time.Now().UTC()

	f.observe(ind, 15, t0)
	first := f.activeBreach(metric.ID)
	_, err := f.eng.ResolveBreach(context.Background(), f.org.ID, first.ID, f.user.ID, "fixed upstream")
	require.NoError(t, err)

	f.observe(ind, 16, t0.Add(time.Hour))

	assert.EqualValues(t, 2, f.breachCount(metric.ID))
	second := f.activeBreach(metric.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, models.BreachOpen, second.Status)
	assert.EqualValues(t, 1, f.alertCount(notify.EventBreachOpened, second.ID))
}

func TestBoardExceptionLifecycle(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("monthly operational loss")
	ctx := context.Background()
	t0 := time.Now().UTC()

	f.observe(ind, 15, t0)
	b := f.activeBreach(metric.ID)

	override, err := f.eng.RequestException(ctx, f.org.ID, b.ID, f.user.ID, ExceptionRequest{
		Justification: "loss budget rebased at the Q3 board meeting",
		ExpiresAt:     t0.Add(48 * time.Hour),
		GreenMax:      30,
		AmberMax:      40,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OverridePending, override.Status)

	// a pending exception changes nothing
	outs := f.observe(ind, 15, t0.Add(time.Hour))
	assert.True(t, outs[0].Breach)
	assert.EqualValues(t, 1, f.breachCount(metric.ID))

	_, err = f.eng.DecideException(ctx, f.org.ID, override.ID, f.user.ID, true)
	require.NoError(t, err)

	var accepted models.Breach
	require.NoError(t, f.db.First(&accepted, b.ID).Error)
	assert.Equal(t, models.BreachBoardAccepted, accepted.Status)

	// the adjusted bounds govern while the exception lives
	outs = f.observe(ind, 15, t0.Add(2*time.Hour))
	require.Len(t, outs, 1)
	assert.Equal(t, appetite.ZoneGreen, outs[0].Zone)
	assert.False(t, outs[0].Breach)
	assert.EqualValues(t, 1, f.breachCount(metric.ID))

	// and stop governing the moment they expire
	require.NoError(t, f.db.Model(&models.ThresholdOverride{}).
		Where("id = ?", override.ID).
		Update("expires_at", t0.Add(-time.Minute)).Error)

	outs = f.observe(ind, 15, t0.Add(3*time.Hour))
	require.Len(t, outs, 1)
	assert.True(t, outs[0].Breach)
	assert.EqualValues(t, 2, f.breachCount(metric.ID))
	fresh := f.activeBreach(metric.ID)
	assert.NotEqual(t, b.ID, fresh.ID)
}

func TestBoardExceptionRejection(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("monthly operational loss")
	ctx := context.Background()

	f.observe(ind, 15, time.Now().UTC())
	b := f.activeBreach(metric.ID)

	override, err := f.eng.RequestException(ctx, f.org.ID, b.ID, f.user.ID, ExceptionRequest{
		Justification: "request the board will decline",
		ExpiresAt:     time.Now().UTC().Add(24 * time.Hour),
		GreenMax:      99,
		AmberMax:      100,
	})
	require.NoError(t, err)

	_, err = f.eng.DecideException(ctx, f.org.ID, override.ID, f.user.ID, false)
	require.NoError(t, err)

	var decided models.ThresholdOverride
	require.NoError(t, f.db.First(&decided, override.ID).Error)
	assert.Equal(t, models.OverrideRejected, decided.Status)
	assert.Equal(t, f.user.ID, decided.DecidedBy)

	// the breach keeps its workflow state
	still := f.activeBreach(metric.ID)
	assert.Equal(t, models.BreachOpen, still.Status)

	// a decided request cannot be decided again
	_, err = f.eng.DecideException(ctx, f.org.ID, override.ID, f.user.ID, true)
	assert.ErrorIs(t, err, ErrExceptionDecided)
}

func TestRequestExceptionIllegalOnResolvedBreach(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("monthly operational loss")
	ctx := context.Background()

	f.observe(ind, 15, time.Now().UTC())
	b := f.activeBreach(metric.ID)
	_, err := f.eng.ResolveBreach(ctx, f.org.ID, b.ID, f.user.ID, "losses recovered")
	require.NoError(t, err)

	_, err = f.eng.RequestException(ctx, f.org.ID, b.ID, f.user.ID, ExceptionRequest{
		Justification: "too late",
		ExpiresAt:     time.Now().UTC().Add(24 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFailedDeliveryRecordedOnAlert(t *testing.T) {
	f := newFixture(t)
	f.esc.err = assert.AnError
	metric, ind := f.liveMetric("open critical findings")

	f.observe(ind, 15, time.Now().UTC())
	b := f.activeBreach(metric.ID)

	// the breach stands regardless of the webhook outcome
	assert.Equal(t, models.BreachOpen, b.Status)
	assert.Eventually(t, func() bool {
		var alert models.Alert
		err := f.db.Where("event = ? AND subject_id = ?", notify.EventBreachOpened, b.ID).First(&alert).Error
		return err == nil && !alert.Delivered && alert.Error != ""
	}, time.Second, 10*time.Millisecond)
}

func TestConcurrentObservationsSingleBreachSingleAlert(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("queue depth")
	at := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.eng.RecordObservation(context.Background(), f.org.ID, f.user.ID, ind.ID, 15, at, models.QualityValid)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, f.breachCount(metric.ID))
	b := f.activeBreach(metric.ID)
	assert.EqualValues(t, 1, f.alertCount(notify.EventBreachOpened, b.ID))
	assert.Eventually(t, func() bool {
		return f.esc.count(notify.EventBreachOpened) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBreachOpsScopedToOrganization(t *testing.T) {
	f := newFixture(t)
	metric, ind := f.liveMetric("open critical findings")
	ctx := context.Background()

	other := models.Organization{Name: "Other Tenant"}
	require.NoError(t, f.db.Create(&other).Error)

	f.observe(ind, 15, time.Now().UTC())
	b := f.activeBreach(metric.ID)

	_, err := f.eng.AcknowledgeBreach(ctx, other.ID, b.ID, f.user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = f.eng.RequestException(ctx, other.ID, b.ID, f.user.ID, ExceptionRequest{
		Justification: "wrong tenant",
		ExpiresAt:     time.Now().UTC().Add(time.Hour),
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
