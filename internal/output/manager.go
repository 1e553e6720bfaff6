package output

import (
	"errors"
	"fmt"

	"secaudit/internal/rules"
)

// Sink is a destination for audit outcomes and lifecycle events.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager fans every write out to all of its sinks.
type Manager struct {
	sinks []Sink
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sinks)
}

func (m *Manager) Write(v any) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(v); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors writing to sinks: %w", errors.Join(errs...))
	}
	return nil
}

// Start announces a run over root with the number of selected rules.
func (m *Manager) Start(root, environment string, ruleCount int) error {
	return m.Write(Event{Type: EventRunStarted, Root: root, Environment: environment, Rules: ruleCount})
}

// Outcomes writes each outcome in order and stops at the first failing write.
func (m *Manager) Outcomes(outcomes []rules.Outcome) error {
	for _, o := range outcomes {
		if err := m.Write(o); err != nil {
			return err
		}
	}
	return nil
}

// Finish closes the run with its summary and exit code.
func (m *Manager) Finish(environment string, summary rules.Summary, exitCode int) error {
	return m.Write(Event{Type: EventRunFinished, Environment: environment, Summary: &summary, ExitCode: exitCode})
}

func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sinks: %w", errors.Join(errs...))
	}
	return nil
}
