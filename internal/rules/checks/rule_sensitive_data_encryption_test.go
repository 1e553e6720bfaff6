package checks

import (
	"context"
	"testing"

	"secaudit/internal/rules"
)

const customerModel = "package models\n\n" +
	"type Customer struct {\n" +
	"\tName     string\n" +
	"\tEmail    string `cast:\"encrypted\"`\n" +
	"\tPassword string `json:\"-\"`\n" +
	"\tPhone    string `cast:\"encrypted\"`\n" +
	"}\n"

const leakyModel = "package models\n\n" +
	"type Account struct {\n" +
	"\tName     string\n" +
	"\tAPIToken string `json:\"api_token\"`\n" +
	"\tEmail    string\n" +
	"}\n"

func TestSensitiveDataEncryptionRule_Check(t *testing.T) {
	tests := []struct {
		name         string
		files        map[string]string
		opts         map[string]string
		wantStatus   rules.Status
		wantSeverity rules.Severity
		wantIssues   int
		wantLevel    string
	}{
		{
			name:       "PASS when no entities",
			files:      map[string]string{"README.md": "# app\n"},
			wantStatus: rules.StatusPass,
		},
		{
			name:       "PASS when sensitive fields are protected",
			files:      map[string]string{"internal/models/customer.go": customerModel},
			wantStatus: rules.StatusPass,
			wantLevel:  "excellent",
		},
		{
			name:         "FAIL critical for unprotected token",
			files:        map[string]string{"internal/models/account.go": leakyModel},
			wantStatus:   rules.StatusFail,
			wantSeverity: rules.SeverityCritical,
			wantIssues:   2,
			wantLevel:    "critical",
		},
		{
			name: "FAIL error when only email is exposed",
			files: map[string]string{"schemas/contact.yaml": "name: Contact\nfillable: [name, email]\n"},
			wantStatus:   rules.StatusFail,
			wantSeverity: rules.SeverityError,
			wantIssues:   1,
		},
		{
			name: "WARN for lower tier keyword",
			files: map[string]string{"schemas/profile.yaml": "name: Profile\nfillable: [home_address]\n"},
			wantStatus:   rules.StatusWarn,
			wantSeverity: rules.SeverityWarning,
			wantIssues:   1,
		},
		{
			name:       "paths option selects directories",
			files:      map[string]string{"internal/models/account.go": leakyModel, "domain/customer.go": customerModel},
			opts:       map[string]string{"paths": "domain"},
			wantStatus: rules.StatusPass,
		},
		{
			name:         "keywords option narrows the scan",
			files:        map[string]string{"internal/models/account.go": leakyModel},
			opts:         map[string]string{"keywords": "email"},
			wantStatus:   rules.StatusFail,
			wantSeverity: rules.SeverityError,
			wantIssues:   1,
		},
		{
			name:       "unparseable sources are skipped",
			files:      map[string]string{"models/broken.go": "package models\nfunc {"},
			wantStatus: rules.StatusPass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeTree(t, root, tt.files)
			rule := &SensitiveDataEncryptionRule{}
			if tt.opts != nil {
				if err := rule.Configure(tt.opts); err != nil {
					t.Fatalf("Configure: %v", err)
				}
			}

			res, err := rule.Check(context.Background(), newTarget(root, "production", nil))
			if err != nil {
				t.Fatalf("Check error: %v", err)
			}
			if got := statusOf(rule, res); got != tt.wantStatus {
				t.Fatalf("want %v, got %v (%s)", tt.wantStatus, got, res.Message())
			}
			if tt.wantSeverity != "" && res.Severity() != tt.wantSeverity {
				t.Errorf("severity = %s, want %s", res.Severity(), tt.wantSeverity)
			}
			if tt.wantIssues > 0 {
				if n := len(recordsOf(t, res, "issues")); n != tt.wantIssues {
					t.Errorf("issues = %d, want %d", n, tt.wantIssues)
				}
			}
			if tt.wantLevel != "" {
				if lvl, _ := res.Detail("security_level"); lvl != tt.wantLevel {
					t.Errorf("security_level = %v, want %s", lvl, tt.wantLevel)
				}
			}
		})
	}
}
