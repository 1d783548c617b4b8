package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResidualLevel(t *testing.T) {
	tests := []struct {
		name     string
		inherent int
		eff      float64
		want     int
	}{
		{name: "no effectiveness keeps inherent", inherent: 5, eff: 0, want: 5},
		{name: "full effectiveness floors at one", inherent: 5, eff: 1, want: 1},
		{name: "worked likelihood example", inherent: 4, eff: 0.75, want: 2}, // 4 - round(3*0.75) = 2
		{name: "worked impact example", inherent: 5, eff: 0.5, want: 3},     // 5 - round(4*0.5) = 3
		{name: "half rounds up", inherent: 4, eff: 0.5, want: 2},            // round(1.5) = 2
		{name: "just below half rounds down", inherent: 4, eff: 0.49, want: 3},
		{name: "inherent one stays one", inherent: 1, eff: 0.9, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResidualLevel(tt.inherent, tt.eff))
		})
	}
}

// TestResidualLevel_Bounds sweeps the valid domain: the residual rating
// stays inside [1, inherent] and equals inherent at zero effectiveness.
func TestResidualLevel_Bounds(t *testing.T) {
	effs := []float64{0, 0.1, 0.25, 1.0 / 3.0, 0.5, 2.0 / 3.0, 0.75, 0.9, 1}
	for inherent := 1; inherent <= 5; inherent++ {
		for _, eff := range effs {
			got := ResidualLevel(inherent, eff)
			assert.GreaterOrEqual(t, got, 1, "L=%d eff=%v", inherent, eff)
			assert.LessOrEqual(t, got, inherent, "L=%d eff=%v", inherent, eff)
		}
		assert.Equal(t, inherent, ResidualLevel(inherent, 0))
	}
}

func TestResidual_NoControlsKeepsInherent(t *testing.T) {
	r := Residual(4, 5, nil, nil)
	assert.Equal(t, ResidualRating{Likelihood: 4, Impact: 5, Score: 20}, r)
}

// TestResidual_WorkedScenario is the reference case: inherent 4x5 with a
// 0.75 likelihood control and a 0.50 impact control lands on 2x3=6.
func TestResidual_WorkedScenario(t *testing.T) {
	r := Residual(4, 5, []float64{0.75}, []float64{0.5})
	assert.Equal(t, 2, r.Likelihood)
	assert.Equal(t, 3, r.Impact)
	assert.Equal(t, 6, r.Score)
}

// TestResidual_StrongestControlOnly: effectiveness never sums across
// controls, only the single best applicable one counts per dimension.
func TestResidual_StrongestControlOnly(t *testing.T) {
	single := Residual(5, 5, []float64{0.5}, nil)
	stacked := Residual(5, 5, []float64{0.5, 0.5, 0.25}, nil)
	assert.Equal(t, single, stacked)

	best := Residual(5, 5, []float64{0.25, 0.75, 0.5}, nil)
	assert.Equal(t, ResidualLevel(5, 0.75), best.Likelihood)
}

func TestResidual_DimensionsIndependent(t *testing.T) {
	r := Residual(5, 2, []float64{1}, nil)
	assert.Equal(t, 1, r.Likelihood, "likelihood controls must not touch impact")
	assert.Equal(t, 2, r.Impact)
	assert.Equal(t, 2, r.Score)
}
