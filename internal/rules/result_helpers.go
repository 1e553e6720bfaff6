package rules

import "maps"

func newResult(passed bool, severity Severity, message string, details map[string]any) Result {
	res := Result{
		passed:   passed,
		severity: severity,
		message:  message,
	}
	if len(details) > 0 {
		res.details = maps.Clone(details)
	}
	return res
}

func PassResult(message string, details map[string]any) Result {
	return newResult(true, SeverityInfo, message, details)
}

// FailResult reports a failure at the rule's default severity.
// The engine stamps the severity when the rule returns the result.
func FailResult(message string, details map[string]any) Result {
	return newResult(false, "", message, details)
}

func FailResultWithSeverity(severity Severity, message string, details map[string]any) Result {
	return newResult(false, severity, message, details)
}

// WarningResult reports a failure that should not block by default.
func WarningResult(message string, details map[string]any) Result {
	return newResult(false, SeverityWarning, message, details)
}

func CriticalResult(message string, details map[string]any) Result {
	return newResult(false, SeverityCritical, message, details)
}

// ErrorResult reports that a rule could not be evaluated.
func ErrorResult(ruleID string, message string) Result {
	res := newResult(false, SeverityError, message, nil)
	res.ruleID = ruleID
	return res
}
