package checks

import (
	"context"
	"strings"
	"testing"

	"secaudit/internal/rules"
)

const healthyLock = `{
  "packages": [
    {"name": "laravel/framework", "version": "v11.2.0", "time": "2025-10-01T10:00:00+00:00"},
    {"name": "guzzlehttp/guzzle", "version": "7.8.1", "time": "2025-06-01"}
  ],
  "packages-dev": [
    {"name": "phpunit/phpunit", "version": "10.5.0", "time": "2025-09-01"}
  ]
}`

const vulnerableLock = `{
  "packages": [
    {"name": "facade/ignition", "version": "2.4.1", "time": "2025-05-01"},
    {"name": "laravel/framework", "version": "v11.2.0", "time": "2025-10-01"}
  ]
}`

const legacyLock = `{
  "packages": [
    {"name": "laravel/framework", "version": "v9.52.0", "time": "2025-03-01"},
    {"name": "swiftmailer/swiftmailer", "version": "v6.3.0", "time": "2025-02-01", "abandoned": "symfony/mailer"}
  ]
}`

const staleLock = `{
  "packages": [
    {"name": "acme/old", "version": "1.0.0", "time": "2022-01-01"},
    {"name": "acme/aging", "version": "2.0.0", "time": "2024-09-01"}
  ]
}`

const customAdvisories = `advisories:
  - package: acme/old
    title: Template injection
    affected: ["<1.2.0"]
    fixed: ["1.2.0"]
    severity: medium
`

func TestDependencyAuditRule_Check(t *testing.T) {
	tests := []struct {
		name         string
		files        map[string]string
		env          string
		opts         map[string]string
		wantStatus   rules.Status
		wantSeverity rules.Severity
		wantKinds    []string
	}{
		{
			name:         "FAIL critical without lock manifest",
			files:        map[string]string{},
			env:          "production",
			wantStatus:   rules.StatusFail,
			wantSeverity: rules.SeverityCritical,
		},
		{
			name:       "PASS with empty package list",
			files:      map[string]string{"composer.lock": `{"packages": []}`},
			env:        "production",
			wantStatus: rules.StatusPass,
		},
		{
			name:       "PASS when healthy outside production",
			files:      map[string]string{"composer.lock": healthyLock},
			env:        "staging",
			wantStatus: rules.StatusPass,
		},
		{
			name:       "WARN on dev packages in production",
			files:      map[string]string{"composer.lock": healthyLock},
			env:        "production",
			wantStatus: rules.StatusWarn,
			wantKinds:  []string{"dev-in-production"},
		},
		{
			name:         "FAIL critical on known vulnerability",
			files:        map[string]string{"composer.lock": vulnerableLock},
			env:          "staging",
			wantStatus:   rules.StatusFail,
			wantSeverity: rules.SeverityCritical,
			wantKinds:    []string{"vulnerable"},
		},
		{
			name:         "FAIL high on unsupported framework",
			files:        map[string]string{"composer.lock": legacyLock},
			env:          "staging",
			wantStatus:   rules.StatusFail,
			wantSeverity: rules.SeverityHigh,
			wantKinds:    []string{"abandoned", "unsupported-framework"},
		},
		{
			name:       "framework check can be disabled",
			files:      map[string]string{"composer.lock": legacyLock},
			env:        "staging",
			opts:       map[string]string{"framework": ""},
			wantStatus: rules.StatusWarn,
			wantKinds:  []string{"abandoned"},
		},
		{
			name:       "WARN on very outdated package",
			files:      map[string]string{"composer.lock": staleLock},
			env:        "staging",
			wantStatus: rules.StatusWarn,
			wantKinds:  []string{"very-outdated"},
		},
		{
			name:         "custom advisories are merged",
			files:        map[string]string{"composer.lock": staleLock, "security/advisories.yaml": customAdvisories},
			env:          "staging",
			opts:         map[string]string{"advisories": "security/advisories.yaml"},
			wantStatus:   rules.StatusWarn,
			wantSeverity: rules.SeverityWarning,
			wantKinds:    []string{"vulnerable", "very-outdated"},
		},
		{
			name:       "manifest option",
			files:      map[string]string{"deps/app.lock": healthyLock},
			env:        "staging",
			opts:       map[string]string{"manifest": "deps/app.lock"},
			wantStatus: rules.StatusPass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeTree(t, root, tt.files)
			rule := &DependencyAuditRule{}
			if tt.opts != nil {
				if err := rule.Configure(tt.opts); err != nil {
					t.Fatalf("Configure: %v", err)
				}
			}

			res, err := rule.Check(context.Background(), newTarget(root, tt.env, nil))
			if err != nil {
				t.Fatalf("Check error: %v", err)
			}
			if got := statusOf(rule, res); got != tt.wantStatus {
				t.Fatalf("want %v, got %v (%s)", tt.wantStatus, got, res.Message())
			}
			if tt.wantSeverity != "" && res.Severity() != tt.wantSeverity {
				t.Errorf("severity = %s, want %s", res.Severity(), tt.wantSeverity)
			}
			if len(tt.wantKinds) == 0 {
				return
			}
			var kinds []string
			for _, rec := range recordsOf(t, res, "issues") {
				kinds = append(kinds, rec["kind"].(string))
			}
			if strings.Join(kinds, ",") != strings.Join(tt.wantKinds, ",") {
				t.Errorf("issue kinds = %v, want %v", kinds, tt.wantKinds)
			}
		})
	}
}

func TestDependencyAuditRule_MissingManifestMessage(t *testing.T) {
	rule := &DependencyAuditRule{}
	res, err := rule.Check(context.Background(), newTarget(t.TempDir(), "production", nil))
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !strings.Contains(res.Message(), "cannot audit without a lock file") {
		t.Errorf("message = %q", res.Message())
	}
}

func TestDependencyAuditRule_SeverityOptionRegradesMissingManifest(t *testing.T) {
	rule := rules.WithPolicy(&DependencyAuditRule{})
	if err := rule.(rules.ConfigurableRule).Configure(map[string]string{rules.OptionSeverity: "warning"}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	res, err := rule.Check(context.Background(), newTarget(t.TempDir(), "production", nil))
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Severity() != rules.SeverityWarning {
		t.Errorf("severity = %s, want warning", res.Severity())
	}
	if res.Blocking() {
		t.Error("a failure re-graded to warning must not block")
	}
	if got := statusOf(rule, res); got != rules.StatusWarn {
		t.Errorf("status = %s, want WARN", got)
	}
}

func TestDependencyAuditRule_Faults(t *testing.T) {
	t.Run("malformed manifest", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"composer.lock": "{not json"})
		if _, err := (&DependencyAuditRule{}).Check(context.Background(), newTarget(root, "production", nil)); err == nil {
			t.Fatal("expected error for malformed manifest")
		}
	})

	t.Run("missing advisory database", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"composer.lock": healthyLock})
		rule := &DependencyAuditRule{}
		if err := rule.Configure(map[string]string{"advisories": "missing.yaml"}); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		if _, err := rule.Check(context.Background(), newTarget(root, "production", nil)); err == nil {
			t.Fatal("expected error for missing advisory database")
		}
	})
}

func TestDependencyAuditRule_ConfigureErrors(t *testing.T) {
	tests := []struct {
		name string
		opts map[string]string
	}{
		{"signature without keyring", map[string]string{"advisories": "a.yaml", "signature": "a.yaml.asc"}},
		{"signature without advisories", map[string]string{"signature": "a.asc", "keyring": "k.asc"}},
		{"bad min major", map[string]string{"framework_min_major": "ten"}},
		{"zero days", map[string]string{"very_outdated_days": "0"}},
		{"thresholds inverted", map[string]string{"very_outdated_days": "100", "outdated_days": "200"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := (&DependencyAuditRule{}).Configure(tt.opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
