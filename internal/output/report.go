package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"secaudit/internal/rules"
)

// reportDetailLimit caps the records listed per detail key in the report.
const reportDetailLimit = 25

// ReportSink renders a Markdown report when closed.
type ReportSink struct {
	path         string
	file         *os.File
	mu           sync.Mutex
	outcomes     []rules.Outcome
	root         string
	environment  string
	summary      *rules.Summary
	exitCode     int
	haveExitCode bool
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{path: path, file: f}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t := v.(type) {
	case rules.Outcome:
		s.outcomes = append(s.outcomes, t)
	case Event:
		if t.Root != "" {
			s.root = t.Root
		}
		if t.Environment != "" {
			s.environment = t.Environment
		}
		if t.Type == EventRunFinished {
			s.exitCode = t.ExitCode
			s.haveExitCode = true
			s.summary = t.Summary
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.WriteString(s.render()); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

func (s *ReportSink) render() string {
	summary := rules.Summarize(s.outcomes)
	if s.summary != nil {
		summary = *s.summary
	}

	var fails, warns, errs []rules.Outcome
	for _, o := range s.outcomes {
		switch o.Status() {
		case rules.StatusFail:
			fails = append(fails, o)
		case rules.StatusWarn:
			warns = append(warns, o)
		case rules.StatusError:
			errs = append(errs, o)
		}
	}
	sortByPriority(fails)
	sortByPriority(warns)

	var b strings.Builder
	b.WriteString("# Security Audit Report\n\n")
	if s.root != "" {
		b.WriteString(fmt.Sprintf("- **Target**: `%s`\n", s.root))
	}
	if s.environment != "" {
		b.WriteString(fmt.Sprintf("- **Environment**: %s\n", s.environment))
	}
	if s.haveExitCode {
		b.WriteString(fmt.Sprintf("- **Exit code**: %d\n", s.exitCode))
	}
	b.WriteString("\n")

	// --- Executive Risk Brief ---
	b.WriteString("### Executive Risk Brief\n\n")
	critical := countSeverity(fails, rules.SeverityCritical)
	high := countSeverity(fails, rules.SeverityHigh)
	switch {
	case critical > 0:
		b.WriteString(fmt.Sprintf("- **%d critical check(s) failed.** Treat this deployment as unsafe until they are fixed.\n", critical))
	case high > 0:
		b.WriteString(fmt.Sprintf("- **%d high-severity check(s) failed.**\n", high))
	case len(fails) > 0:
		b.WriteString(fmt.Sprintf("- %d blocking check(s) failed.\n", len(fails)))
	default:
		b.WriteString("- No blocking risks found.\n")
	}
	if len(warns) > 0 {
		b.WriteString(fmt.Sprintf("- %d non-blocking warning(s).\n", len(warns)))
	}
	if len(errs) > 0 {
		b.WriteString(fmt.Sprintf("- %d check(s) could not be evaluated; their coverage is missing from this report.\n", len(errs)))
	}
	b.WriteString("\n**What to do first**\n")
	if len(fails) > 0 {
		first := fails[0]
		b.WriteString(fmt.Sprintf("- Fix **%s**: %s\n", first.RuleID, first.Result.Message()))
	} else {
		b.WriteString("- No immediate actions required.\n")
	}
	b.WriteString("\n")

	// --- Top Risk Areas ---
	b.WriteString("### Top Risk Areas\n\n")
	catStats := computeCategoryStats(s.outcomes)
	if len(catStats) == 0 {
		b.WriteString("- No top risk areas found.\n\n")
	} else {
		b.WriteString("| Area | Worst severity | Rules |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, cs := range catStats {
			name := fmt.Sprintf("**%s**", cs.Name)
			if desc, ok := CategoryRiskDescription[cs.Name]; ok {
				name = fmt.Sprintf("**%s**<br>_%s_", cs.Name, desc)
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", name, cs.Severity, formatList(cs.Rules, 3)))
		}
		b.WriteString("\n")
	}

	// --- Summary ---
	b.WriteString("## Summary\n\n")
	b.WriteString("| Total | PASS | FAIL | WARN | ERROR |\n")
	b.WriteString("| ---: | ---: | ---: | ---: | ---: |\n")
	b.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d |\n\n",
		summary.Total, summary.Passed, summary.Failed, summary.Warnings, summary.Errored))

	// --- Failures ---
	b.WriteString("## Failures\n\n")
	if len(fails) == 0 {
		b.WriteString("- None\n\n")
	} else {
		var current rules.Severity
		for _, o := range fails {
			if sev := o.Result.Severity(); sev != current {
				current = sev
				b.WriteString(fmt.Sprintf("### %s\n\n", strings.ToUpper(string(sev))))
			}
			writeOutcome(&b, o)
		}
	}

	// --- Warnings ---
	b.WriteString("## Warnings\n\n")
	if len(warns) == 0 {
		b.WriteString("- None\n\n")
	} else {
		for _, o := range warns {
			writeOutcome(&b, o)
		}
	}

	// --- Errors ---
	b.WriteString("## Errors\n\n")
	if len(errs) == 0 {
		b.WriteString("- None\n\n")
	} else {
		byReason := make(map[string][]string)
		for _, o := range errs {
			reason := normalizeErrorReason(o.Result.Message())
			byReason[reason] = append(byReason[reason], o.RuleID)
		}
		reasons := make([]string, 0, len(byReason))
		for r := range byReason {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			ids := byReason[r]
			sort.Strings(ids)
			b.WriteString(fmt.Sprintf("- **%s**: %s\n", formatList(ids, 5), r))
		}
		b.WriteString("\n")
	}

	// --- Rules Evaluated ---
	b.WriteString("## Rules evaluated\n")
	if len(s.outcomes) == 0 {
		b.WriteString("- None\n\n")
	} else {
		for _, o := range s.outcomes {
			b.WriteString(fmt.Sprintf("- %s %s", o.Status(), o.RuleID))
			if o.Description != "" {
				b.WriteString(fmt.Sprintf(": %s", o.Description))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeOutcome(b *strings.Builder, o rules.Outcome) {
	b.WriteString(fmt.Sprintf("- **%s**", o.RuleID))
	if msg := o.Result.Message(); msg != "" {
		b.WriteString(fmt.Sprintf(": %s", msg))
	}
	b.WriteString("\n")
	for _, l := range detailLines(o.Result.Details(), reportDetailLimit) {
		if rec, ok := strings.CutPrefix(l, "  "); ok {
			// Record lines already carry their own list marker.
			b.WriteString("    " + rec + "\n")
			continue
		}
		b.WriteString("  - " + l + "\n")
	}
	b.WriteString("\n")
}

func countSeverity(outcomes []rules.Outcome, sev rules.Severity) int {
	n := 0
	for _, o := range outcomes {
		if o.Result.Severity() == sev {
			n++
		}
	}
	return n
}
