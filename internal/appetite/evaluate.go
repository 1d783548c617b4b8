package appetite

// Result of evaluating one observation against a tolerance metric.
type Result struct {
	Zone     Zone
	Breach   bool
	Severity Zone    // amber or red, set when Breach is true
	Variance float64 // distance beyond the violated boundary, 0 in GREEN
	Rate     float64 // directional metrics only: the classified per-day rate
}

// Classify maps a raw value to a zone for the value-based metric types.
// Directional metrics classify a rate instead; see Evaluate.
func Classify(t Thresholds, value float64) Zone {
	switch t.Type {
	case MetricMinimum:
		switch {
		case value >= t.GreenMin:
			return ZoneGreen
		case value >= t.AmberMin:
			return ZoneAmber
		default:
			return ZoneRed
		}
	case MetricRange:
		switch {
		case value >= t.GreenLow && value <= t.GreenHigh:
			return ZoneGreen
		case value >= t.AmberLow && value <= t.AmberHigh:
			return ZoneAmber
		default:
			return ZoneRed
		}
	default: // maximum, and directional once the rate is in hand
		switch {
		case value <= t.GreenMax:
			return ZoneGreen
		case value <= t.AmberMax:
			return ZoneAmber
		default:
			return ZoneRed
		}
	}
}

// Evaluate classifies the current observation and applies the metric's
// breach rule over the prior history.
//
// history holds the prior evaluation-grade observations ordered oldest
// first and never includes current. The function is pure: windowed rules
// are recomputed from the observation log on every call, nothing is
// carried between evaluations.
func Evaluate(t Thresholds, r Rule, current Point, history []Point) Result {
	zone, rate := classifyAt(t, current, history)
	res := Result{
		Zone:     zone,
		Rate:     rate,
		Variance: variance(t, zone, classifiedValue(t, current.Value, rate)),
	}

	switch r.Kind {
	case RuleSustained:
		run := append(zoneSeries(t, history), zone)
		if len(run) >= r.Count && r.Count > 0 {
			run = run[len(run)-r.Count:]
			switch {
			case allAtLeast(run, ZoneRed):
				res.Breach, res.Severity = true, ZoneRed
			case allAtLeast(run, ZoneAmber):
				res.Breach, res.Severity = true, ZoneAmber
			}
		}
	case RuleNBreaches:
		cutoff := current.At.Add(-days(r.WindowDays))
		violations, worst := 0, ZoneGreen
		for i, z := range zoneSeries(t, history) {
			if history[i].At.Before(cutoff) || z == ZoneGreen {
				continue
			}
			violations++
			worst = Worst(worst, z)
		}
		if zone != ZoneGreen {
			violations++
			worst = Worst(worst, zone)
		}
		if r.Count > 0 && violations >= r.Count {
			res.Breach, res.Severity = true, worst
		}
	default: // point in time
		if zone != ZoneGreen {
			res.Breach, res.Severity = true, zone
		}
	}
	return res
}

// classifyAt classifies a single point given the points before it. For
// directional metrics the classified quantity is the per-day rate of change
// across the lookback window; for everything else it is the raw value.
func classifyAt(t Thresholds, p Point, prior []Point) (Zone, float64) {
	if t.Type != MetricDirectional {
		return Classify(t, p.Value), 0
	}
	rate := ratePerDay(t.LookbackDays, p, prior)
	return Classify(t, rate), rate
}

// ratePerDay computes the signed per-day change from the earliest prior
// point inside the lookback window to p. With no prior point in the window
// there is no measurable movement and the rate is zero.
func ratePerDay(lookbackDays int, p Point, prior []Point) float64 {
	windowStart := p.At.Add(-days(lookbackDays))
	for _, q := range prior {
		if q.At.Before(windowStart) || q.At.After(p.At) {
			continue
		}
		elapsed := p.At.Sub(q.At).Hours() / 24
		if elapsed <= 0 {
			return 0
		}
		return (p.Value - q.Value) / elapsed
	}
	return 0
}

// zoneSeries classifies every history point in order. Directional metrics
// classify each point against its own prefix so windowed rules see the same
// zones the point-in-time evaluations produced.
func zoneSeries(t Thresholds, history []Point) []Zone {
	zones := make([]Zone, len(history))
	for i, p := range history {
		zones[i], _ = classifyAt(t, p, history[:i])
	}
	return zones
}

func allAtLeast(zones []Zone, floor Zone) bool {
	for _, z := range zones {
		if !z.AtLeast(floor) {
			return false
		}
	}
	return len(zones) > 0
}

// classifiedValue is the quantity the zone was derived from: the rate for
// directional metrics, the raw value otherwise.
func classifiedValue(t Thresholds, value, rate float64) float64 {
	if t.Type == MetricDirectional {
		return rate
	}
	return value
}

// variance measures how far v sits beyond the boundary of the violated
// zone. It is reporting detail on breach records, not part of any decision.
func variance(t Thresholds, zone Zone, v float64) float64 {
	switch t.Type {
	case MetricMinimum:
		switch zone {
		case ZoneAmber:
			return t.GreenMin - v
		case ZoneRed:
			return t.AmberMin - v
		}
	case MetricRange:
		switch zone {
		case ZoneAmber:
			if v < t.GreenLow {
				return t.GreenLow - v
			}
			return v - t.GreenHigh
		case ZoneRed:
			if v < t.AmberLow {
				return t.AmberLow - v
			}
			return v - t.AmberHigh
		}
	default: // maximum and directional
		switch zone {
		case ZoneAmber:
			return v - t.GreenMax
		case ZoneRed:
			return v - t.AmberMax
		}
	}
	return 0
}
