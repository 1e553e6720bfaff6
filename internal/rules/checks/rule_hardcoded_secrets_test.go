package checks

import (
	"context"
	"testing"

	"secaudit/internal/rules"
)

func TestHardcodedSecretsRule_Check(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"config/services.php": "<?php\nreturn [\n    'STRIPE_SECRET' => 'sk_live_abc123',\n    // 'OLD_KEY' => 'abc',\n    'API_URL' => env('API_URL'),\n];\n",
		"app/Http/Kernel.php": "<?php\n$APP_NAME = 'shop';\n",
		"src/client.go":       "package client\n\nconst API_TOKEN = \"tok_123\"\n",
		"vendor/acme/x.php":   "<?php\n$DB_PASSWORD = 'root';\n",
		"public/logo.png":     "\x89PNG\x00\x00API_KEY = 'x'",
	})
	clean := t.TempDir()
	writeTree(t, clean, map[string]string{"app/main.go": "package main\n\nvar name = \"demo\"\n"})

	tests := []struct {
		name         string
		root         string
		env          string
		opts         map[string]string
		wantStatus   rules.Status
		wantFindings int
	}{
		{name: "PASS on clean tree", root: clean, env: "production", wantStatus: rules.StatusPass},
		{name: "FAIL on literal secrets", root: root, env: "production", wantStatus: rules.StatusFail, wantFindings: 2},
		{name: "FAIL includes vendor in testing", root: root, env: "testing", wantStatus: rules.StatusFail, wantFindings: 3},
		{name: "FAIL includes vendor when asked", root: root, env: "production", opts: map[string]string{"include_vendor": "true"}, wantStatus: rules.StatusFail, wantFindings: 3},
		{name: "paths restrict the scan", root: root, env: "production", opts: map[string]string{"paths": "app"}, wantStatus: rules.StatusPass},
		{name: "patterns restrict matches", root: root, env: "production", opts: map[string]string{"patterns": "*_TOKEN"}, wantStatus: rules.StatusFail, wantFindings: 1},
		{name: "extensions restrict files", root: root, env: "production", opts: map[string]string{"extensions": "go"}, wantStatus: rules.StatusFail, wantFindings: 1},
		{name: "missing path is not an error", root: root, env: "production", opts: map[string]string{"paths": "does-not-exist"}, wantStatus: rules.StatusPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &HardcodedSecretsRule{}
			if tt.opts != nil {
				if err := rule.Configure(tt.opts); err != nil {
					t.Fatalf("Configure: %v", err)
				}
			}
			res, err := rule.Check(context.Background(), newTarget(tt.root, tt.env, nil))
			if err != nil {
				t.Fatalf("Check error: %v", err)
			}
			if got := statusOf(rule, res); got != tt.wantStatus {
				t.Fatalf("want %v, got %v (%s)", tt.wantStatus, got, res.Message())
			}
			if tt.wantFindings == 0 {
				return
			}
			findings := recordsOf(t, res, "findings")
			if len(findings) != tt.wantFindings {
				t.Fatalf("findings = %v, want %d", findings, tt.wantFindings)
			}
		})
	}
}

func TestHardcodedSecretsRule_FindingShape(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"config/app.php": "<?php\n\n$API_KEY = 'sk_live_123';\n",
	})
	rule := &HardcodedSecretsRule{}
	res, err := rule.Check(context.Background(), newTarget(root, "production", nil))
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Severity() != "" {
		t.Errorf("failure should use the rule default severity, got %q", res.Severity())
	}
	f := recordsOf(t, res, "findings")[0]
	if f["file"] != "config/app.php" || f["line"] != 3 || f["pattern"] != "*_KEY" {
		t.Errorf("unexpected finding %v", f)
	}
	if f["content"] != "$API_KEY = 'sk_live_123';" {
		t.Errorf("content = %q", f["content"])
	}
}

func TestHardcodedSecretsRule_Canceled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&HardcodedSecretsRule{}).Check(ctx, newTarget(root, "production", nil)); err == nil {
		t.Fatal("expected context error")
	}
}

func TestHardcodedSecretsRule_ConfigureErrors(t *testing.T) {
	rule := &HardcodedSecretsRule{}
	if err := rule.Configure(map[string]string{"include_vendor": "sometimes"}); err == nil {
		t.Fatal("expected error for invalid include_vendor")
	}
}
