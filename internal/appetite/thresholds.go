package appetite

import "time"

// MetricType selects how a tolerance metric compares observed values to its
// zone boundaries.
type MetricType string

const (
	// MetricMaximum tolerates values up to a ceiling: higher is worse.
	MetricMaximum MetricType = "maximum"
	// MetricMinimum tolerates values down to a floor: lower is worse.
	MetricMinimum MetricType = "minimum"
	// MetricRange tolerates values inside nested green/amber bands.
	MetricRange MetricType = "range"
	// MetricDirectional classifies the per-day rate of change over a
	// lookback window instead of the raw value, MAXIMUM-style.
	MetricDirectional MetricType = "directional"
)

// RuleKind selects how zone classifications turn into breach decisions.
type RuleKind string

const (
	// RulePointInTime breaches on a single AMBER or RED observation.
	RulePointInTime RuleKind = "point_in_time"
	// RuleSustained breaches only after N consecutive non-GREEN
	// observations; a single GREEN resets the run.
	RuleSustained RuleKind = "sustained"
	// RuleNBreaches breaches once N non-GREEN observations fall inside a
	// rolling trailing window.
	RuleNBreaches RuleKind = "n_breaches"
)

// Thresholds carries the zone boundaries of one tolerance metric. Only the
// fields matching Type are meaningful; the caller validates monotonicity at
// the input boundary, so everything here assumes well-formed bounds.
type Thresholds struct {
	Type MetricType

	// maximum and directional (bounds on the rate for directional)
	GreenMax float64
	AmberMax float64

	// minimum
	GreenMin float64
	AmberMin float64

	// range: green band nested inside the amber band
	GreenLow  float64
	GreenHigh float64
	AmberLow  float64
	AmberHigh float64

	// directional lookback for the rate computation
	LookbackDays int
}

// Rule is the breach rule attached to a tolerance metric.
type Rule struct {
	Kind       RuleKind
	Count      int // sustained: run length; n_breaches: violation count
	WindowDays int // n_breaches: rolling window size
}

// Point is a single observed value on a metric's feed.
type Point struct {
	Value float64
	At    time.Time
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
