// Package scoring computes control effectiveness and residual risk from
// inherent ratings and DIME control assessments. All functions are total
// over their validated domains; input ranges are enforced at the API
// boundary, never here.
package scoring

// maxAssessmentPoints is the sum of four dimension scores at their ceiling
// of 3 each: a control scored 3/3/3/3 is fully effective.
const maxAssessmentPoints = 12.0

// Effectiveness converts one DIME assessment into a protection ratio in
// [0,1]. Design and implementation are gating: a control that was never
// designed or never implemented protects nothing no matter how well it is
// monitored or evaluated. Monitoring and evaluation may be zero on their
// own without zeroing the result.
func Effectiveness(design, implementation, monitoring, evaluation int) float64 {
	if design == 0 || implementation == 0 {
		return 0
	}
	return float64(design+implementation+monitoring+evaluation) / maxAssessmentPoints
}
