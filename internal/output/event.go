package output

import "secaudit/internal/rules"

const (
	EventRunStarted  = "run.started"
	EventRuleResult  = "rule.result"
	EventRunFinished = "run.finished"
)

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line):
// - run.started
// - rule.result
// - run.finished
//
// JSON mode remains an aggregate of rules.Outcome values.
type Event struct {
	Type        string `json:"type"`
	Environment string `json:"environment,omitempty"`
	Root        string `json:"root,omitempty"`
	*rules.Outcome
	Rules    int            `json:"rules,omitempty"`
	Summary  *rules.Summary `json:"summary,omitempty"`
	ExitCode int            `json:"exit_code,omitempty"`
}

func eventFromOutcome(o rules.Outcome) Event {
	return Event{Type: EventRuleResult, Environment: o.Environment, Outcome: &o}
}
