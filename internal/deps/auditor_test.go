package deps

import (
	"testing"
	"time"

	"secaudit/internal/rules"
)

var auditNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := auditNow.AddDate(0, 0, -n)
	return &t
}

func TestAuditorVulnerabilities(t *testing.T) {
	db := NewDatabase(Advisory{
		Package:  "x",
		Title:    "X flaw",
		Affected: []string{"<4.4.13"},
		Fixed:    []string{"4.4.13"},
		Severity: rules.SeverityCritical,
		CVE:      "CVE-2020-0001",
	})
	a := Auditor{DB: db, Now: auditNow}

	tests := []struct {
		version string
		want    int
	}{
		{"4.4.5", 1},
		{"4.4.13", 0},
		{"v4.4.12", 1},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			report := a.Audit([]Package{{Name: "x", Version: tt.version, Kind: KindProduction, LastUpdated: daysAgo(10)}})
			if len(report.Issues) != tt.want {
				t.Fatalf("issues = %+v, want %d", report.Issues, tt.want)
			}
			if tt.want == 1 {
				issue := report.Issues[0]
				if issue.Kind != IssueVulnerable || issue.CVE != "CVE-2020-0001" || issue.Severity != rules.SeverityCritical {
					t.Errorf("unexpected issue %+v", issue)
				}
			}
		})
	}
}

func TestAuditorStaleness(t *testing.T) {
	a := Auditor{Now: auditNow}
	report := a.Audit([]Package{
		{Name: "fresh", Version: "1.0", LastUpdated: daysAgo(30)},
		{Name: "aging", Version: "1.0", LastUpdated: daysAgo(400)},
		{Name: "ancient", Version: "1.0", LastUpdated: daysAgo(800)},
		{Name: "undated", Version: "1.0"},
	})

	if len(report.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %+v", report.Issues)
	}
	for i, want := range []string{"ancient", "undated"} {
		if report.Issues[i].Package != want || report.Issues[i].Kind != IssueVeryOutdated {
			t.Errorf("issue %d = %+v, want very-outdated %s", i, report.Issues[i], want)
		}
		if report.Issues[i].Severity != rules.SeverityWarning {
			t.Errorf("issue %d severity = %s", i, report.Issues[i].Severity)
		}
	}
	if len(report.Outdated) != 1 || report.Outdated[0].Name != "aging" || report.Outdated[0].Days != 400 {
		t.Errorf("Outdated = %+v", report.Outdated)
	}
	if len(report.OutdatedRecords()) != 1 {
		t.Errorf("OutdatedRecords() = %v", report.OutdatedRecords())
	}
}

func TestAuditorAbandonedAndEnvironment(t *testing.T) {
	pkgs := []Package{
		{Name: "laravel/framework", Version: "v5.8.38", Kind: KindProduction, LastUpdated: daysAgo(10)},
		{Name: "swiftmailer/swiftmailer", Version: "6.3.0", Kind: KindProduction, LastUpdated: daysAgo(10), Abandoned: true, Replacement: "symfony/mailer"},
		{Name: "phpunit/phpunit", Version: "9.5.0", Kind: KindDevelopment, LastUpdated: daysAgo(10)},
	}
	fw := &Framework{Package: "laravel/framework", MinSupportedMajor: 10, Latest: "11.x"}

	tests := []struct {
		name       string
		production bool
		wantKinds  []IssueKind
		wantRollUp rules.Severity
	}{
		{
			name:       "production run",
			production: true,
			wantKinds:  []IssueKind{IssueAbandoned, IssueDevInProduction, IssueUnsupportedFramework},
			wantRollUp: rules.SeverityHigh,
		},
		{
			name:       "non-production run",
			production: false,
			wantKinds:  []IssueKind{IssueAbandoned, IssueUnsupportedFramework},
			wantRollUp: rules.SeverityHigh,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Auditor{Now: auditNow, Production: tt.production, Framework: fw}.Audit(pkgs)
			if len(report.Issues) != len(tt.wantKinds) {
				t.Fatalf("issues = %+v", report.Issues)
			}
			for i, k := range tt.wantKinds {
				if report.Issues[i].Kind != k {
					t.Errorf("issue %d kind = %s, want %s", i, report.Issues[i].Kind, k)
				}
			}
			if sev, ok := report.RollUp(); !ok || sev != tt.wantRollUp {
				t.Errorf("RollUp() = %s, %v; want %s", sev, ok, tt.wantRollUp)
			}
		})
	}

	report := Auditor{Now: auditNow}.Audit(pkgs[1:2])
	if msg := report.Issues[0].Message; msg != "swiftmailer/swiftmailer is abandoned; use symfony/mailer instead" {
		t.Errorf("abandoned message = %q", msg)
	}
}

func TestAuditorSupportedFramework(t *testing.T) {
	fw := &Framework{Package: "laravel/framework", MinSupportedMajor: 10}
	report := Auditor{Now: auditNow, Framework: fw}.Audit([]Package{
		{Name: "laravel/framework", Version: "v11.2.0", LastUpdated: daysAgo(1)},
	})
	if len(report.Issues) != 0 {
		t.Errorf("expected no issues, got %+v", report.Issues)
	}
}

func TestReportRollUp(t *testing.T) {
	tests := []struct {
		name   string
		sevs   []rules.Severity
		want   rules.Severity
		wantOK bool
	}{
		{"no issues", nil, "", false},
		{"critical and warning", []rules.Severity{rules.SeverityWarning, rules.SeverityCritical}, rules.SeverityCritical, true},
		{"high and warning", []rules.Severity{rules.SeverityWarning, rules.SeverityHigh}, rules.SeverityHigh, true},
		{"error only", []rules.Severity{rules.SeverityError}, rules.SeverityWarning, true},
		{"warnings only", []rules.Severity{rules.SeverityWarning}, rules.SeverityWarning, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Report
			for _, s := range tt.sevs {
				r.Issues = append(r.Issues, Issue{Severity: s})
			}
			got, ok := r.RollUp()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("RollUp() = %s, %v; want %s, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBuiltinDatabaseFlagsKnownVersions(t *testing.T) {
	report := Auditor{DB: BuiltinDatabase(), Now: auditNow}.Audit([]Package{
		{Name: "symfony/http-kernel", Version: "v4.4.5", LastUpdated: daysAgo(10)},
		{Name: "symfony/http-kernel", Version: "v4.4.13", LastUpdated: daysAgo(10)},
	})
	if len(report.Issues) != 1 || report.Issues[0].Version != "v4.4.5" {
		t.Errorf("issues = %+v", report.Issues)
	}
	if got := len(report.Records()); got != 1 {
		t.Errorf("Records() len = %d", got)
	}
}
