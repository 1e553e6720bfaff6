package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"secaudit/internal/rules"
)

// consoleDetailLimit caps how many records per detail key the text format
// prints for one rule.
const consoleDetailLimit = 5

type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	mu              sync.Mutex
	outcomes        []rules.Outcome // For JSON array output
	allowedStatuses map[rules.Status]bool
}

func NewConsoleSink(w io.Writer, format string, filterStatuses []string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer: w,
		format: format,
	}

	if len(filterStatuses) > 0 {
		s.allowedStatuses = make(map[rules.Status]bool)
		for _, raw := range filterStatuses {
			if st, ok := rules.ParseStatus(raw); ok {
				s.allowedStatuses[st] = true
			}
		}
	}

	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	printf := func(format string, args ...any) error {
		_, err := fmt.Fprintf(s.writer, format, args...)
		return err
	}

	if len(s.allowedStatuses) > 0 {
		if o, ok := v.(rules.Outcome); ok && !s.allowedStatuses[o.Status()] {
			return nil
		}
	}

	switch s.format {
	case "json":
		o, ok := v.(rules.Outcome)
		if !ok {
			// Ignore non-result events in JSON console mode.
			return nil
		}
		s.outcomes = append(s.outcomes, o)
		return nil
	case "ndjson":
		encoder := json.NewEncoder(s.writer)
		switch t := v.(type) {
		case Event:
			if err := encoder.Encode(t); err != nil {
				return err
			}
			return flushStream(s.writer)
		case rules.Outcome:
			if err := encoder.Encode(eventFromOutcome(t)); err != nil {
				return err
			}
			return flushStream(s.writer)
		default:
			return nil
		}
	case "text":
		switch t := v.(type) {
		case rules.Outcome:
			if err := s.writeOutcomeText(t); err != nil {
				return err
			}
			return flushStream(s.writer)
		case Event:
			if t.Type != EventRunFinished || t.Summary == nil {
				return nil
			}
			sum := t.Summary
			if err := printf("\n%d rules: %d passed, %d failed, %d warnings, %d errored\n",
				sum.Total, sum.Passed, sum.Failed, sum.Warnings, sum.Errored); err != nil {
				return err
			}
			return flushStream(s.writer)
		}
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) writeOutcomeText(o rules.Outcome) error {
	res := o.Result
	line := fmt.Sprintf("%s %s", statusLabel(o.Status()), o.RuleID)
	if !res.Passed() {
		line += dimColor.Sprintf(" (%s)", res.Severity())
	}
	if res.Message() != "" {
		line += " - " + res.Message()
	}
	if _, err := fmt.Fprintln(s.writer, line); err != nil {
		return err
	}
	if res.Passed() {
		return nil
	}
	for _, l := range detailLines(res.Details(), consoleDetailLimit) {
		if _, err := fmt.Fprintln(s.writer, "    "+l); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		outcomes := s.outcomes
		if outcomes == nil {
			outcomes = []rules.Outcome{}
		}
		if err := encoder.Encode(outcomes); err != nil {
			return err
		}
		return flushStream(s.writer)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}
