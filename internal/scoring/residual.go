package scoring

import "math"

// ResidualRating holds the engine-derived residual side of a risk.
type ResidualRating struct {
	Likelihood int
	Impact     int
	Score      int
}

// ResidualLevel reduces one inherent rating (1..5) by the strongest
// applicable control effectiveness: max(1, L - round((L-1) x eff)).
// Rounding is half-up; the product is never negative, so math.Round
// matches. Effectiveness 0 leaves the rating untouched, effectiveness 1
// floors it at 1.
func ResidualLevel(inherent int, effectiveness float64) int {
	reduction := int(math.Round(float64(inherent-1) * effectiveness))
	residual := inherent - reduction
	if residual < 1 {
		residual = 1
	}
	return residual
}

// Residual derives the residual rating of a risk from its inherent
// likelihood/impact and the effectiveness values of the controls applicable
// to each dimension. Only the single strongest control counts per
// dimension; effectiveness does not accumulate across controls. A risk with
// no applicable controls keeps its inherent ratings.
func Residual(inherentLikelihood, inherentImpact int, likelihoodEffs, impactEffs []float64) ResidualRating {
	r := ResidualRating{
		Likelihood: ResidualLevel(inherentLikelihood, strongest(likelihoodEffs)),
		Impact:     ResidualLevel(inherentImpact, strongest(impactEffs)),
	}
	r.Score = r.Likelihood * r.Impact
	return r
}

// strongest returns the highest effectiveness in effs, 0 when empty.
func strongest(effs []float64) float64 {
	best := 0.0
	for _, e := range effs {
		if e > best {
			best = e
		}
	}
	return best
}
