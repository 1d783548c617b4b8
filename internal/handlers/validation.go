package handlers

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"minrisk/internal/appetite"
)

// thresholdBounds carries the zone cut points of a tolerance definition.
// Which fields matter depends on the metric type; monotonicity is checked
// before anything reaches the engine, which assumes well-formed bounds.
type thresholdBounds struct {
	GreenMax  float64 `json:"green_max"`
	AmberMax  float64 `json:"amber_max"`
	GreenMin  float64 `json:"green_min"`
	AmberMin  float64 `json:"amber_min"`
	GreenLow  float64 `json:"green_low"`
	GreenHigh float64 `json:"green_high"`
	AmberLow  float64 `json:"amber_low"`
	AmberHigh float64 `json:"amber_high"`
}

// boundsValid rejects non-monotonic zone boundaries for the given metric
// type: the amber zone must enclose the green zone on the worsening side.
func boundsValid(metricType appetite.MetricType, b thresholdBounds) error {
	switch metricType {
	case appetite.MetricMinimum:
		if b.GreenMin < b.AmberMin {
			return errors.New("green_min must not be below amber_min")
		}
	case appetite.MetricRange:
		if b.AmberLow > b.GreenLow || b.GreenLow > b.GreenHigh || b.GreenHigh > b.AmberHigh {
			return errors.New("bands must satisfy amber_low <= green_low <= green_high <= amber_high")
		}
	default: // maximum and directional
		if b.GreenMax > b.AmberMax {
			return errors.New("green_max must not exceed amber_max")
		}
	}
	return nil
}

// RegisterValidations installs the struct-level tolerance checks on gin's
// binding engine. Called once by the router before any request binds.
func RegisterValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerToleranceValidation(v)
	}
}

func registerToleranceValidation(v *validator.Validate) {
	v.RegisterStructValidation(validateToleranceDefinition, createToleranceRequest{})
}

// validateToleranceDefinition enforces the cross-field rules a tag cannot
// express: threshold monotonicity per metric type, a lookback window for
// directional metrics, and sane rule parameters for windowed breach rules.
func validateToleranceDefinition(sl validator.StructLevel) {
	req := sl.Current().Interface().(createToleranceRequest)

	if err := boundsValid(req.MetricType, req.thresholdBounds); err != nil {
		sl.ReportError(req.thresholdBounds, "thresholds", "thresholdBounds", "thresholdorder", err.Error())
	}

	if req.MetricType == appetite.MetricDirectional && req.LookbackDays < 1 {
		sl.ReportError(req.LookbackDays, "lookback_days", "LookbackDays", "lookbackwindow", "directional metrics need lookback_days >= 1")
	}

	switch req.BreachRule {
	case appetite.RuleSustained:
		if req.RuleCount < 1 {
			sl.ReportError(req.RuleCount, "rule_count", "RuleCount", "rulecount", "sustained rules need rule_count >= 1")
		}
	case appetite.RuleNBreaches:
		if req.RuleCount < 1 {
			sl.ReportError(req.RuleCount, "rule_count", "RuleCount", "rulecount", "n_breaches rules need rule_count >= 1")
		}
		if req.RuleWindowDays < 1 {
			sl.ReportError(req.RuleWindowDays, "rule_window_days", "RuleWindowDays", "rulewindow", "n_breaches rules need rule_window_days >= 1")
		}
	}
}
