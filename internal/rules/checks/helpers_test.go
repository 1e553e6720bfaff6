package checks

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"secaudit/internal/fsx"
	"secaudit/internal/rules"
	"secaudit/internal/settings"
)

var checkNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTarget(root, env string, values map[string]string) *rules.Target {
	return &rules.Target{
		Root:        root,
		Environment: env,
		Settings:    settings.FromMap(values),
		Now:         checkNow,
		Files:       fsx.NewWalker(),
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// statusOf classifies res the way the engine would after stamping it.
func statusOf(r rules.Rule, res rules.Result) rules.Status {
	return rules.Outcome{RuleID: r.ID(), Result: res.Stamp(r.ID(), r.Severity())}.Status()
}

func recordsOf(t *testing.T, res rules.Result, key string) []map[string]any {
	t.Helper()
	v, ok := res.Detail(key)
	if !ok {
		t.Fatalf("result has no %q detail: %+v", key, res.Details())
	}
	recs, ok := v.([]map[string]any)
	if !ok {
		t.Fatalf("detail %q has type %T", key, v)
	}
	return recs
}
