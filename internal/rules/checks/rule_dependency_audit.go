package checks

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"secaudit/internal/deps"
	"secaudit/internal/rules"
)

const (
	defaultFramework         = "laravel/framework"
	defaultFrameworkMinMajor = 10
	defaultFrameworkLatest   = "11.x"
)

type DependencyAuditRule struct {
	manifest          string
	advisories        string
	signature         string
	keyring           string
	framework         string
	frameworkMinMajor int
	frameworkLatest   string
	veryOutdatedDays  int
	outdatedDays      int
	// noFramework is set when the framework option is explicitly empty.
	noFramework bool
}

func (r *DependencyAuditRule) ID() string {
	return "dependency-audit"
}

func (r *DependencyAuditRule) Title() string {
	return "Dependencies Are Patched and Maintained"
}

func (r *DependencyAuditRule) Description() string {
	return "Reads the lock manifest and checks every installed package against known advisories.\n\n" +
		"Also reports packages not updated in two years, abandoned packages, development packages in a production " +
		"run, and an application framework whose major version is no longer supported. Without a lock manifest the " +
		"dependencies cannot be audited and the rule fails."
}

func (r *DependencyAuditRule) Severity() rules.Severity {
	return rules.SeverityCritical
}

func (r *DependencyAuditRule) AppliesToEnvironment(string) bool {
	return true
}

func (r *DependencyAuditRule) Options() []rules.Option {
	return []rules.Option{
		{
			Name:        "manifest",
			Description: "Lock manifest path, relative to the audit root.",
			Default:     deps.DefaultManifest,
		},
		{
			Name:        "advisories",
			Description: "YAML advisory database merged into the built-in advisories.",
		},
		{
			Name:        "signature",
			Description: "Detached OpenPGP signature of the advisory database. Requires keyring.",
		},
		{
			Name:        "keyring",
			Description: "OpenPGP public keyring (armored or binary) used to verify signature.",
		},
		{
			Name:        "framework",
			Description: "Package name of the application framework. Empty disables the support check.",
			Default:     defaultFramework,
		},
		{
			Name:        "framework_min_major",
			Description: "Oldest supported major version of the framework.",
			Default:     strconv.Itoa(defaultFrameworkMinMajor),
		},
		{
			Name:        "framework_latest",
			Description: "Latest supported framework version, shown as an upgrade hint.",
			Default:     defaultFrameworkLatest,
		},
		{
			Name:        "very_outdated_days",
			Description: "Days without an update after which a package is reported as very outdated.",
			Default:     strconv.Itoa(deps.DefaultVeryOutdatedDays),
		},
		{
			Name:        "outdated_days",
			Description: "Days without an update after which a package is listed as potentially outdated.",
			Default:     strconv.Itoa(deps.DefaultOutdatedDays),
		},
	}
}

func (r *DependencyAuditRule) Configure(opts map[string]string) error {
	*r = DependencyAuditRule{}

	r.manifest, _ = optionValue(opts, "manifest")
	r.advisories, _ = optionValue(opts, "advisories")
	r.signature, _ = optionValue(opts, "signature")
	r.keyring, _ = optionValue(opts, "keyring")
	if (r.signature == "") != (r.keyring == "") {
		return fmt.Errorf("signature and keyring must be set together")
	}
	if r.signature != "" && r.advisories == "" {
		return fmt.Errorf("signature requires advisories")
	}

	if v, ok := opts["framework"]; ok {
		r.framework = v
		r.noFramework = v == ""
	}
	var err error
	if r.frameworkMinMajor, _, err = intOption(opts, "framework_min_major", 1); err != nil {
		return err
	}
	r.frameworkLatest, _ = optionValue(opts, "framework_latest")

	if r.veryOutdatedDays, _, err = intOption(opts, "very_outdated_days", 1); err != nil {
		return err
	}
	if r.outdatedDays, _, err = intOption(opts, "outdated_days", 1); err != nil {
		return err
	}
	very, outdated := r.veryOutdatedDays, r.outdatedDays
	if very == 0 {
		very = deps.DefaultVeryOutdatedDays
	}
	if outdated == 0 {
		outdated = deps.DefaultOutdatedDays
	}
	if outdated > very {
		return fmt.Errorf("outdated_days (%d) must not exceed very_outdated_days (%d)", outdated, very)
	}
	return nil
}

func (r *DependencyAuditRule) manifestPath() string {
	if r.manifest == "" {
		return deps.DefaultManifest
	}
	return r.manifest
}

// frameworkPolicy returns nil when the support check is disabled.
func (r *DependencyAuditRule) frameworkPolicy() *deps.Framework {
	if r.noFramework {
		return nil
	}
	fw := &deps.Framework{
		Package:           r.framework,
		MinSupportedMajor: r.frameworkMinMajor,
		Latest:            r.frameworkLatest,
	}
	if fw.Package == "" {
		fw.Package = defaultFramework
	}
	if fw.MinSupportedMajor == 0 {
		fw.MinSupportedMajor = defaultFrameworkMinMajor
	}
	if fw.Latest == "" {
		fw.Latest = defaultFrameworkLatest
	}
	return fw
}

func (r *DependencyAuditRule) database(t *rules.Target) (*deps.Database, error) {
	db := deps.BuiltinDatabase()
	if r.advisories == "" {
		return db, nil
	}
	var (
		extra *deps.Database
		err   error
	)
	if r.signature != "" {
		extra, err = deps.LoadVerifiedDatabase(t.Path(r.advisories), t.Path(r.signature), t.Path(r.keyring))
	} else {
		extra, err = deps.LoadDatabase(t.Path(r.advisories))
	}
	if err != nil {
		return nil, err
	}
	db.Merge(extra)
	return db, nil
}

func (r *DependencyAuditRule) Check(ctx context.Context, t *rules.Target) (rules.Result, error) {
	manifest := r.manifestPath()
	pkgs, err := deps.ReadManifest(t.Path(manifest))
	if err != nil {
		if errors.Is(err, deps.ErrNoManifest) {
			return rules.CriticalResult(
				fmt.Sprintf("No lock manifest found at %s; cannot audit without a lock file", manifest),
				map[string]any{"manifest": manifest},
			), nil
		}
		return rules.Result{}, err
	}
	if len(pkgs) == 0 {
		return rules.PassResult("Lock manifest lists no packages", map[string]any{"manifest": manifest}), nil
	}
	if err := ctx.Err(); err != nil {
		return rules.Result{}, err
	}

	db, err := r.database(t)
	if err != nil {
		return rules.Result{}, err
	}

	auditor := deps.Auditor{
		DB:               db,
		Now:              t.Clock(),
		Production:       inEnvironments(t.Environment, []string{"production"}),
		VeryOutdatedDays: r.veryOutdatedDays,
		OutdatedDays:     r.outdatedDays,
		Framework:        r.frameworkPolicy(),
	}
	report := auditor.Audit(pkgs)

	details := map[string]any{
		"manifest":         manifest,
		"packages_checked": report.Checked,
		"advisories":       db.Len(),
	}
	if len(report.Outdated) > 0 {
		details["potentially_outdated"] = report.OutdatedRecords()
	}

	sev, failed := report.RollUp()
	if !failed {
		return rules.PassResult(fmt.Sprintf("%d package(s) checked, no issues found", report.Checked), details), nil
	}
	details["issues"] = report.Records()
	return rules.FailResultWithSeverity(
		sev,
		fmt.Sprintf("%d dependency issue(s) found across %d package(s)", len(report.Issues), report.Checked),
		details,
	), nil
}

func init() {
	rules.Register(&DependencyAuditRule{})
}
