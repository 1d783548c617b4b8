package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minrisk/internal/appetite"
	"minrisk/internal/models"
)

func (f *fixture) createCategory(name string, appetiteLevel models.AppetiteLevel) models.AppetiteCategory {
	f.t.Helper()
	cat := models.AppetiteCategory{
		OrganizationID: f.org.ID,
		Name:           name,
		Appetite:       appetiteLevel,
	}
	require.NoError(f.t, f.db.Create(&cat).Error)
	return cat
}

func (f *fixture) insertBreach(metricID uint, severity appetite.Zone, status models.BreachStatus) models.Breach {
	f.t.Helper()
	now := time.Now().UTC()
	b := models.Breach{
		OrganizationID:    f.org.ID,
		ToleranceMetricID: metricID,
		Ref:               uuid.New(),
		Severity:          severity,
		Status:            status,
		DetectedAt:        now,
		LastEvaluatedAt:   now,
	}
	require.NoError(f.t, f.db.Create(&b).Error)
	return b
}

func TestStatusRollsUpWorstSeverity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	financial := f.createCategory("Financial", models.AppetiteModerate)
	compliance := f.createCategory("Compliance", models.AppetiteZero)

	opsMetric, _ := f.liveMetric("ops incidents")
	finMetric, _ := f.liveMetric("trading losses", func(m *models.ToleranceMetric) {
		m.CategoryID = financial.ID
	})
	compMetric, _ := f.liveMetric("filing delays", func(m *models.ToleranceMetric) {
		m.CategoryID = compliance.ID
	})

	f.insertBreach(opsMetric.ID, appetite.ZoneAmber, models.BreachOpen)
	red := f.insertBreach(finMetric.ID, appetite.ZoneRed, models.BreachAcknowledged)
	f.insertBreach(compMetric.ID, appetite.ZoneRed, models.BreachResolved) // closed, must not count

	st, err := f.eng.Status(ctx, f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, appetite.ZoneRed, st.Enterprise)
	assert.False(t, st.ComputedAt.IsZero())

	// alphabetical: Compliance, Financial, Operational
	require.Len(t, st.Categories, 3)
	assert.Equal(t, "Compliance", st.Categories[0].Name)
	assert.Equal(t, appetite.ZoneGreen, st.Categories[0].Status)
	assert.Zero(t, st.Categories[0].ActiveBreaches)
	assert.Equal(t, 1, st.Categories[0].Metrics)

	assert.Equal(t, "Financial", st.Categories[1].Name)
	assert.Equal(t, appetite.ZoneRed, st.Categories[1].Status)
	assert.Equal(t, 1, st.Categories[1].ActiveBreaches)

	assert.Equal(t, "Operational", st.Categories[2].Name)
	assert.Equal(t, appetite.ZoneAmber, st.Categories[2].Status)
	assert.Equal(t, models.AppetiteLow, st.Categories[2].Appetite)

	// resolving the red breach drops the enterprise to amber
	_, err = f.eng.ResolveBreach(ctx, f.org.ID, red.ID, f.user.ID, "positions unwound")
	require.NoError(t, err)

	st, err = f.eng.Status(ctx, f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, appetite.ZoneAmber, st.Enterprise)
	assert.Equal(t, appetite.ZoneGreen, st.Categories[1].Status)
}

func TestStatusBoardAcceptedBreachDoesNotCount(t *testing.T) {
	f := newFixture(t)

	metric, _ := f.liveMetric("ops incidents")
	f.insertBreach(metric.ID, appetite.ZoneRed, models.BreachBoardAccepted)

	st, err := f.eng.Status(context.Background(), f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, appetite.ZoneGreen, st.Enterprise)
	require.Len(t, st.Categories, 1)
	assert.Zero(t, st.Categories[0].ActiveBreaches)
}

func TestStatusQuietOrganizationIsGreen(t *testing.T) {
	f := newFixture(t)
	f.liveMetric("ops incidents")

	st, err := f.eng.Status(context.Background(), f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, appetite.ZoneGreen, st.Enterprise)
	require.Len(t, st.Categories, 1)
	assert.Equal(t, appetite.ZoneGreen, st.Categories[0].Status)
	assert.Equal(t, 1, st.Categories[0].Metrics)
}

func TestStatusIgnoresOtherTenants(t *testing.T) {
	f := newFixture(t)

	other := models.Organization{Name: "Other Tenant"}
	require.NoError(t, f.db.Create(&other).Error)
	otherCat := models.AppetiteCategory{OrganizationID: other.ID, Name: "Their Ops", Appetite: models.AppetiteLow}
	require.NoError(t, f.db.Create(&otherCat).Error)
	otherMetric := models.ToleranceMetric{
		OrganizationID: other.ID,
		CategoryID:     otherCat.ID,
		Name:           "their incidents",
		MetricType:     appetite.MetricMaximum,
		GreenMax:       1,
		AmberMax:       2,
		BreachRule:     appetite.RulePointInTime,
	}
	require.NoError(t, f.db.Create(&otherMetric).Error)
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&models.Breach{
		OrganizationID:    other.ID,
		ToleranceMetricID: otherMetric.ID,
		Ref:               uuid.New(),
		Severity:          appetite.ZoneRed,
		Status:            models.BreachOpen,
		DetectedAt:        now,
		LastEvaluatedAt:   now,
	}).Error)

	st, err := f.eng.Status(context.Background(), f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, appetite.ZoneGreen, st.Enterprise)
	require.Len(t, st.Categories, 1)
	assert.Equal(t, "Operational", st.Categories[0].Name)
}
