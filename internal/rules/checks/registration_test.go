package checks

import (
	"testing"

	"secaudit/internal/rules"
)

func TestBuiltinRulesRegistered(t *testing.T) {
	tests := []struct {
		id       string
		severity rules.Severity
		applies  map[string]bool
	}{
		{"hardcoded-secrets", rules.SeverityCritical, map[string]bool{"production": true, "local": true}},
		{"sensitive-data-encryption", rules.SeverityCritical, map[string]bool{"production": true, "local": true}},
		{"dependency-audit", rules.SeverityCritical, map[string]bool{"production": true, "testing": true}},
		{"debug-mode-disabled", rules.SeverityCritical, map[string]bool{"production": true, "staging": true, "qa": true, "local": false, "development": false, "testing": false}},
		{"app-key-set", rules.SeverityCritical, map[string]bool{"production": true, "local": true}},
		{"https-enforced", rules.SeverityError, map[string]bool{"production": true, "staging": true, "local": false}},
		{"session-cookies-secure", rules.SeverityError, map[string]bool{"production": true, "Staging": true, "testing": false}},
		{"env-file-permissions", rules.SeverityError, map[string]bool{"production": true, "local": true}},
		{"cors-wildcard-origin", rules.SeverityWarning, map[string]bool{"production": true, "staging": true, "development": false}},
	}

	if got := rules.Default().Len(); got != len(tests) {
		t.Errorf("expected %d built-in rules, got %d", len(tests), got)
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r, ok := rules.Default().Get(tt.id)
			if !ok {
				t.Fatalf("rule %s not registered", tt.id)
			}
			if _, ok := r.(*rules.PolicyWrapper); !ok {
				t.Errorf("rule %s is not wrapped with the standard policy options", tt.id)
			}
			if r.Severity() != tt.severity {
				t.Errorf("severity = %s, want %s", r.Severity(), tt.severity)
			}
			if r.Title() == "" || r.Description() == "" {
				t.Error("title and description must be set")
			}
			for env, want := range tt.applies {
				if got := r.AppliesToEnvironment(env); got != want {
					t.Errorf("AppliesToEnvironment(%q) = %v, want %v", env, got, want)
				}
			}
		})
	}
}

func TestBuiltinRulesAcceptTheirDefaults(t *testing.T) {
	for _, r := range rules.List() {
		cr, ok := r.(rules.ConfigurableRule)
		if !ok {
			continue
		}
		opts := make(map[string]string)
		for _, o := range cr.Options() {
			opts[o.Name] = o.Default
		}
		if err := cr.Configure(opts); err != nil {
			t.Errorf("%s: Configure(defaults): %v", r.ID(), err)
		}
		// Reset so other tests see an unconfigured rule.
		if err := cr.Configure(nil); err != nil {
			t.Errorf("%s: Configure(nil): %v", r.ID(), err)
		}
	}
}
