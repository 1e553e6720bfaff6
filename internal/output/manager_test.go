package output

import (
	"errors"
	"strings"
	"testing"

	"secaudit/internal/rules"
)

type sinkA struct {
	writes   []any
	writeErr error
	closeErr error
}

func (s *sinkA) Write(v any) error {
	s.writes = append(s.writes, v)
	return s.writeErr
}

func (s *sinkA) Close() error {
	return s.closeErr
}

type sinkB struct {
	writes   []any
	writeErr error
	closeErr error
}

func (s *sinkB) Write(v any) error {
	s.writes = append(s.writes, v)
	return s.writeErr
}

func (s *sinkB) Close() error {
	return s.closeErr
}

func TestManager(t *testing.T) {
	t.Run("writes to all sinks", func(t *testing.T) {
		a := &sinkA{}
		b := &sinkB{}

		mgr := NewManager()
		if err := mgr.AddSink(a); err != nil {
			t.Fatalf("AddSink(a) error: %v", err)
		}
		if err := mgr.AddSink(b); err != nil {
			t.Fatalf("AddSink(b) error: %v", err)
		}

		if err := mgr.Write("v1"); err != nil {
			t.Fatalf("Write(v1) error: %v", err)
		}
		if err := mgr.Write("v2"); err != nil {
			t.Fatalf("Write(v2) error: %v", err)
		}
		if err := mgr.Close(); err != nil {
			t.Fatalf("Close() error: %v", err)
		}

		if got := len(a.writes); got != 2 {
			t.Fatalf("sinkA writes: want 2, got %d", got)
		}
		if got := len(b.writes); got != 2 {
			t.Fatalf("sinkB writes: want 2, got %d", got)
		}
	})

	t.Run("AddSink rejects nil", func(t *testing.T) {
		mgr := NewManager()
		if err := mgr.AddSink(nil); err == nil {
			t.Fatalf("AddSink(nil) want error, got nil")
		}
	})

	t.Run("Write aggregates sink errors", func(t *testing.T) {
		a := &sinkA{writeErr: errors.New("boom-a")}
		b := &sinkB{writeErr: errors.New("boom-b")}
		mgr := NewManager()
		if err := mgr.AddSink(a); err != nil {
			t.Fatalf("AddSink(a) error: %v", err)
		}
		if err := mgr.AddSink(b); err != nil {
			t.Fatalf("AddSink(b) error: %v", err)
		}

		err := mgr.Write("v")
		if err == nil {
			t.Fatalf("Write want error, got nil")
		}
		msg := err.Error()
		for _, want := range []string{"errors writing to sinks", "boom-a", "boom-b", "sinkA", "sinkB"} {
			if !strings.Contains(msg, want) {
				t.Fatalf("Write error missing %q; got: %s", want, msg)
			}
		}
	})

	t.Run("Close aggregates sink errors", func(t *testing.T) {
		a := &sinkA{closeErr: errors.New("close-a")}
		b := &sinkB{closeErr: errors.New("close-b")}
		mgr := NewManager()
		if err := mgr.AddSink(a); err != nil {
			t.Fatalf("AddSink(a) error: %v", err)
		}
		if err := mgr.AddSink(b); err != nil {
			t.Fatalf("AddSink(b) error: %v", err)
		}

		err := mgr.Close()
		if err == nil {
			t.Fatalf("Close want error, got nil")
		}
		msg := err.Error()
		for _, want := range []string{"errors closing sinks", "close-a", "close-b", "sinkA", "sinkB"} {
			if !strings.Contains(msg, want) {
				t.Fatalf("Close error missing %q; got: %s", want, msg)
			}
		}
	})

	t.Run("lifecycle writes events around outcomes", func(t *testing.T) {
		a := &sinkA{}
		mgr := NewManager()
		if err := mgr.AddSink(a); err != nil {
			t.Fatalf("AddSink(a) error: %v", err)
		}
		if mgr.Len() != 1 {
			t.Fatalf("Len: want 1, got %d", mgr.Len())
		}

		outcomes := []rules.Outcome{
			outcome("a", rules.PassResult("ok", nil)),
			outcome("b", rules.FailResult("bad", nil)),
		}
		if err := mgr.Start("/srv/app", "production", len(outcomes)); err != nil {
			t.Fatalf("Start error: %v", err)
		}
		if err := mgr.Outcomes(outcomes); err != nil {
			t.Fatalf("Outcomes error: %v", err)
		}
		if err := mgr.Finish("production", rules.Summarize(outcomes), 1); err != nil {
			t.Fatalf("Finish error: %v", err)
		}

		if len(a.writes) != 4 {
			t.Fatalf("writes: want 4, got %d", len(a.writes))
		}
		start, ok := a.writes[0].(Event)
		if !ok || start.Type != EventRunStarted || start.Rules != 2 || start.Root != "/srv/app" {
			t.Fatalf("unexpected first write: %#v", a.writes[0])
		}
		if o, ok := a.writes[2].(rules.Outcome); !ok || o.RuleID != "b" {
			t.Fatalf("unexpected third write: %#v", a.writes[2])
		}
		end, ok := a.writes[3].(Event)
		if !ok || end.Type != EventRunFinished || end.ExitCode != 1 || end.Summary == nil || end.Summary.Failed != 1 {
			t.Fatalf("unexpected last write: %#v", a.writes[3])
		}
	})

	t.Run("nil manager", func(t *testing.T) {
		var mgr *Manager
		if mgr.Len() != 0 {
			t.Fatalf("nil Len: want 0")
		}
		if err := mgr.Write("v"); err == nil {
			t.Fatalf("nil Write want error, got nil")
		}
	})
}
