package appetite

// CoverageStrength is how strongly an indicator is expected to signal
// movement on a tolerance metric.
type CoverageStrength string

const (
	CoveragePrimary       CoverageStrength = "primary"
	CoverageSecondary     CoverageStrength = "secondary"
	CoverageSupplementary CoverageStrength = "supplementary"
)

// SignalType is the timing relationship between an indicator and the
// exposure its tolerance metric governs.
type SignalType string

const (
	SignalLeading    SignalType = "leading"
	SignalConcurrent SignalType = "concurrent"
	SignalLagging    SignalType = "lagging"
)

// CoverageGrade is the completeness classification of a metric's
// indicator coverage.
type CoverageGrade string

const (
	CoverageGap     CoverageGrade = "gap"
	CoverageFragile CoverageGrade = "fragile"
	CoverageGood    CoverageGrade = "good"
)

// GradeCoverage classifies how completely a set of indicator links covers
// one tolerance metric. No links is a gap, a single link is fragile, and
// two or more links only count as good when at least one of them is a
// primary signal.
func GradeCoverage(strengths []CoverageStrength) CoverageGrade {
	switch {
	case len(strengths) == 0:
		return CoverageGap
	case len(strengths) == 1:
		return CoverageFragile
	}
	for _, s := range strengths {
		if s == CoveragePrimary {
			return CoverageGood
		}
	}
	return CoverageFragile
}
