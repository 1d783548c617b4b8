// Package appetite implements the quantitative side of risk appetite
// governance: zone classification of observed values against tolerance
// thresholds, breach decisions over observation history, coverage grading
// and worst-case status rollups.
package appetite

// Zone is the traffic-light classification of an observed value.
type Zone string

const (
	ZoneGreen Zone = "green"
	ZoneAmber Zone = "amber"
	ZoneRed   Zone = "red"
)

// rank orders zones for worst-of rollups: GREEN < AMBER < RED.
func (z Zone) rank() int {
	switch z {
	case ZoneRed:
		return 2
	case ZoneAmber:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether z is as bad as other or worse.
func (z Zone) AtLeast(other Zone) bool {
	return z.rank() >= other.rank()
}

// Worst returns the worst zone of the given set, GREEN when empty.
// Category and enterprise statuses are both folds over this ordering:
// a category is the worst of its metrics' active breach severities, the
// enterprise is the worst of its categories.
func Worst(zones ...Zone) Zone {
	worst := ZoneGreen
	for _, z := range zones {
		if z.rank() > worst.rank() {
			worst = z
		}
	}
	return worst
}
