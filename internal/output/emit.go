package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"secaudit/internal/rules"
)

// EmitSink writes an additional structured stream, usually to stdout next to
// (or instead of) the console sink.
//
// Formats:
//   - json: aggregates outcomes and writes a single JSON array on Close
//   - ndjson: streams Event values (one JSON object per line)
type EmitSink struct {
	writer   io.Writer
	format   string // "json" | "ndjson"
	mu       sync.Mutex
	outcomes []rules.Outcome
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported emit format: %s", format)
	}
	return &EmitSink{writer: w, format: format}, nil
}

func (s *EmitSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		if o, ok := v.(rules.Outcome); ok {
			s.outcomes = append(s.outcomes, o)
		}
		return nil
	case "ndjson":
		var e Event
		switch t := v.(type) {
		case Event:
			e = t
		case rules.Outcome:
			e = eventFromOutcome(t)
		default:
			return nil
		}
		if err := json.NewEncoder(s.writer).Encode(e); err != nil {
			return err
		}
		return flushStream(s.writer)
	default:
		return fmt.Errorf("unsupported emit format: %s", s.format)
	}
}

func (s *EmitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format != "json" {
		return nil
	}
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
