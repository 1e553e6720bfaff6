package deps

import (
	"fmt"
	"strings"
	"time"

	"secaudit/internal/rules"
)

const (
	DefaultVeryOutdatedDays = 730
	DefaultOutdatedDays     = 365
)

type IssueKind string

const (
	IssueVulnerable           IssueKind = "vulnerable"
	IssueVeryOutdated         IssueKind = "very-outdated"
	IssueAbandoned            IssueKind = "abandoned"
	IssueDevInProduction      IssueKind = "dev-in-production"
	IssueUnsupportedFramework IssueKind = "unsupported-framework"
)

type Issue struct {
	Kind     IssueKind
	Package  string
	Version  string
	Severity rules.Severity
	Message  string
	CVE      string
	Fixed    []string
}

// OutdatedPackage is informational: old enough to mention, not old enough
// to raise an issue.
type OutdatedPackage struct {
	Name    string
	Version string
	Days    int
}

// Framework describes the application framework whose major version must
// still be supported.
type Framework struct {
	Package           string
	MinSupportedMajor int
	Latest            string
}

// Auditor evaluates packages against an advisory database and the
// staleness, abandonment and environment policies.
type Auditor struct {
	DB  *Database
	Now time.Time
	// Production enables the development-package check.
	Production bool
	Framework  *Framework

	VeryOutdatedDays int
	OutdatedDays     int
}

type Report struct {
	Checked  int
	Issues   []Issue
	Outdated []OutdatedPackage
}

func (a Auditor) thresholds() (int, int) {
	very, outdated := a.VeryOutdatedDays, a.OutdatedDays
	if very <= 0 {
		very = DefaultVeryOutdatedDays
	}
	if outdated <= 0 {
		outdated = DefaultOutdatedDays
	}
	return very, outdated
}

// Audit checks every package. Issues are ordered by package, then the
// environment checks follow.
func (a Auditor) Audit(pkgs []Package) Report {
	now := a.Now
	if now.IsZero() {
		now = time.Now()
	}
	very, outdated := a.thresholds()
	report := Report{Checked: len(pkgs)}

	var devPackages []string
	for _, p := range pkgs {
		report.Issues = append(report.Issues, a.vulnerabilities(p)...)

		if p.Abandoned {
			msg := fmt.Sprintf("%s is abandoned", p.Name)
			if p.Replacement != "" {
				msg += fmt.Sprintf("; use %s instead", p.Replacement)
			}
			report.Issues = append(report.Issues, Issue{
				Kind:     IssueAbandoned,
				Package:  p.Name,
				Version:  p.Version,
				Severity: rules.SeverityWarning,
				Message:  msg,
			})
		}

		switch days, known := ageDays(p, now); {
		case !known:
			report.Issues = append(report.Issues, Issue{
				Kind:     IssueVeryOutdated,
				Package:  p.Name,
				Version:  p.Version,
				Severity: rules.SeverityWarning,
				Message:  fmt.Sprintf("%s %s is very outdated (no release date recorded)", p.Name, p.Version),
			})
		case days >= very:
			report.Issues = append(report.Issues, Issue{
				Kind:     IssueVeryOutdated,
				Package:  p.Name,
				Version:  p.Version,
				Severity: rules.SeverityWarning,
				Message:  fmt.Sprintf("%s %s is very outdated (%d days since last update)", p.Name, p.Version, days),
			})
		case days >= outdated:
			report.Outdated = append(report.Outdated, OutdatedPackage{Name: p.Name, Version: p.Version, Days: days})
		}

		if p.Kind == KindDevelopment {
			devPackages = append(devPackages, p.Name)
		}
	}

	if a.Production && len(devPackages) > 0 {
		report.Issues = append(report.Issues, Issue{
			Kind:     IssueDevInProduction,
			Severity: rules.SeverityWarning,
			Message: fmt.Sprintf("%d development package(s) installed in production: %s",
				len(devPackages), strings.Join(devPackages, ", ")),
		})
	}

	if issue, ok := a.framework(pkgs); ok {
		report.Issues = append(report.Issues, issue)
	}
	return report
}

func (a Auditor) vulnerabilities(p Package) []Issue {
	var out []Issue
	for _, adv := range a.DB.Lookup(p.Name) {
		constraint, ok := MatchesAny(adv.Affected, p.Version)
		if !ok {
			continue
		}
		sev := adv.Severity
		if !sev.Valid() {
			sev = rules.SeverityHigh
		}
		msg := fmt.Sprintf("%s %s: %s (affected %s)", p.Name, p.Version, adv.Title, constraint)
		if len(adv.Fixed) > 0 {
			msg += fmt.Sprintf("; fixed in %s", strings.Join(adv.Fixed, ", "))
		}
		out = append(out, Issue{
			Kind:     IssueVulnerable,
			Package:  p.Name,
			Version:  p.Version,
			Severity: sev,
			Message:  msg,
			CVE:      adv.CVE,
			Fixed:    adv.Fixed,
		})
	}
	return out
}

func (a Auditor) framework(pkgs []Package) (Issue, bool) {
	if a.Framework == nil || a.Framework.Package == "" {
		return Issue{}, false
	}
	for _, p := range pkgs {
		if !strings.EqualFold(p.Name, a.Framework.Package) {
			continue
		}
		major := Major(p.Version)
		if !IsVersion(p.Version) || major >= a.Framework.MinSupportedMajor {
			return Issue{}, false
		}
		msg := fmt.Sprintf("%s %s is no longer supported (minimum supported major version is %d)",
			p.Name, p.Version, a.Framework.MinSupportedMajor)
		if a.Framework.Latest != "" {
			msg += fmt.Sprintf("; latest supported version is %s", a.Framework.Latest)
		}
		return Issue{
			Kind:     IssueUnsupportedFramework,
			Package:  p.Name,
			Version:  p.Version,
			Severity: rules.SeverityHigh,
			Message:  msg,
		}, true
	}
	return Issue{}, false
}

func ageDays(p Package, now time.Time) (int, bool) {
	if p.LastUpdated == nil {
		return 0, false
	}
	return int(now.Sub(*p.LastUpdated).Hours() / 24), true
}

// RollUp reduces the issues to the rule severity: critical if any issue is
// critical, otherwise high if any is high, otherwise warning. The second
// return is false when there are no issues.
func (r Report) RollUp() (rules.Severity, bool) {
	if len(r.Issues) == 0 {
		return "", false
	}
	sev := rules.SeverityWarning
	for _, i := range r.Issues {
		switch i.Severity {
		case rules.SeverityCritical:
			return rules.SeverityCritical, true
		case rules.SeverityHigh:
			sev = rules.SeverityHigh
		}
	}
	return sev, true
}

// Records converts issues into detail records for a rule result.
func (r Report) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Issues))
	for _, i := range r.Issues {
		rec := map[string]any{
			"kind":     string(i.Kind),
			"severity": string(i.Severity),
			"message":  i.Message,
		}
		if i.Package != "" {
			rec["package"] = i.Package
			rec["version"] = i.Version
		}
		if i.CVE != "" {
			rec["cve"] = i.CVE
		}
		if len(i.Fixed) > 0 {
			rec["fixed"] = strings.Join(i.Fixed, ", ")
		}
		out = append(out, rec)
	}
	return out
}

// OutdatedRecords lists the informational outdated packages.
func (r Report) OutdatedRecords() []map[string]any {
	out := make([]map[string]any, 0, len(r.Outdated))
	for _, o := range r.Outdated {
		out = append(out, map[string]any{
			"package": o.Name,
			"version": o.Version,
			"days":    o.Days,
		})
	}
	return out
}
