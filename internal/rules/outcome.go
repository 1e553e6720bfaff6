package rules

import "strings"

// Status is the console-facing classification of an outcome.
type Status string

const (
	StatusPass Status = "PASS"
	// StatusWarn is a failure below the blocking threshold.
	StatusWarn  Status = "WARN"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// ParseStatus accepts any casing of PASS, WARN, FAIL or ERROR.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPass, StatusWarn, StatusFail, StatusError:
		return st, true
	}
	return "", false
}

// Outcome pairs a rule's descriptive fields with the result it produced.
type Outcome struct {
	RuleID      string   `json:"rule"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Environment string   `json:"environment,omitempty"`
	Result      Result   `json:"result"`
	// Faulted is set when the rule returned an error or panicked instead of
	// producing a result.
	Faulted bool `json:"faulted,omitempty"`
}

func (o Outcome) Status() Status {
	switch {
	case o.Faulted:
		return StatusError
	case o.Result.Passed():
		return StatusPass
	case o.Result.Blocking():
		return StatusFail
	}
	return StatusWarn
}

// Summary counts outcomes by status.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
	Errored  int `json:"errored"`
	// MaxSeverity is the most severe non-passing result, empty when all passed.
	MaxSeverity Severity `json:"max_severity,omitempty"`
}

func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		s.Add(o)
	}
	return s
}

// Add folds one more outcome into the summary.
func (s *Summary) Add(o Outcome) {
	s.Total++
	switch o.Status() {
	case StatusPass:
		s.Passed++
		return
	case StatusWarn:
		s.Warnings++
	case StatusFail:
		s.Failed++
	case StatusError:
		s.Errored++
	}
	s.MaxSeverity = MaxSeverity(s.MaxSeverity, o.Result.Severity())
}
