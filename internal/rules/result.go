package rules

import (
	"encoding/json"
	"maps"
)

// Result is the immutable outcome of one rule check.
//
// Results are built through the factories in result_helpers.go so that the
// severity always agrees with the outcome. Details carries structured
// supporting data: scalars, lists of scalars, or lists of finding records
// (map[string]any).
type Result struct {
	ruleID   string
	passed   bool
	severity Severity
	message  string
	details  map[string]any
}

func (r Result) RuleID() string     { return r.ruleID }
func (r Result) Passed() bool       { return r.passed }
func (r Result) Severity() Severity { return r.severity }
func (r Result) Message() string    { return r.message }

// Details returns a shallow copy of the detail map; callers cannot mutate the result through it.
func (r Result) Details() map[string]any {
	if r.details == nil {
		return nil
	}
	return maps.Clone(r.details)
}

// Detail returns a single detail value.
func (r Result) Detail(key string) (any, bool) {
	v, ok := r.details[key]
	return v, ok
}

// Blocking reports whether this result should fail the run.
func (r Result) Blocking() bool {
	return !r.passed && r.severity.Blocking()
}

// Stamp backfills the rule id and, for failures without an explicit
// severity, the rule's default severity. It returns a new Result.
func (r Result) Stamp(ruleID string, defaultSeverity Severity) Result {
	out := r
	if out.ruleID == "" {
		out.ruleID = ruleID
	}
	if out.severity == "" {
		if out.passed {
			out.severity = SeverityInfo
		} else {
			out.severity = defaultSeverity
		}
	}
	return out
}

type resultJSON struct {
	RuleID   string         `json:"rule_id"`
	Passed   bool           `json:"passed"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		RuleID:   r.ruleID,
		Passed:   r.passed,
		Severity: r.severity,
		Message:  r.message,
		Details:  r.details,
	})
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var v resultJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Result{
		ruleID:   v.RuleID,
		passed:   v.Passed,
		severity: v.Severity,
		message:  v.Message,
		details:  v.Details,
	}
	return nil
}
