package rules

import (
	"fmt"
	"strings"
)

// Severity ranks how serious a failed check is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank orders severities from info (0) to critical (4). Unknown values rank -1.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Blocking reports whether a failure at this severity should fail the run.
// Warnings and info findings are reported but do not block.
func (s Severity) Blocking() bool {
	return s.Rank() >= severityRank[SeverityError]
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity accepts the canonical names case-insensitively.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q (must be one of: info, warning, error, high, critical)", raw)
	}
	return s, nil
}

// MaxSeverity returns the higher ranked of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
