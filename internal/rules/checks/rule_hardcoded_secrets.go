package checks

import (
	"context"
	"fmt"
	"strings"

	"secaudit/internal/rules"
	"secaudit/internal/secrets"
)

var defaultSecretScanPaths = []string{"."}

type HardcodedSecretsRule struct {
	paths         []string
	patterns      []string
	extensions    []string
	excludeDirs   []string
	includeVendor bool
}

func (r *HardcodedSecretsRule) ID() string {
	return "hardcoded-secrets"
}

func (r *HardcodedSecretsRule) Title() string {
	return "No Hardcoded Secrets"
}

func (r *HardcodedSecretsRule) Description() string {
	return "Scans application source for credentials assigned as string literals (for example API_KEY = \"...\").\n\n" +
		"Names are matched against wildcard patterns such as *_KEY or API_*. Comment lines, vendored dependencies " +
		"and binary files are skipped. Secrets belong in the environment, not in source control."
}

func (r *HardcodedSecretsRule) Severity() rules.Severity {
	return rules.SeverityCritical
}

func (r *HardcodedSecretsRule) AppliesToEnvironment(string) bool {
	return true
}

func (r *HardcodedSecretsRule) Options() []rules.Option {
	return []rules.Option{
		{
			Name:        "paths",
			Description: "Comma-separated directories to scan, relative to the audit root.",
			Default:     strings.Join(defaultSecretScanPaths, ","),
		},
		{
			Name:        "patterns",
			Description: "Comma-separated wildcard name patterns. '*' matches any run of non-quote characters.",
			Default:     strings.Join(secrets.DefaultPatterns, ","),
		},
		{
			Name:        "extensions",
			Description: "Comma-separated file extensions to scan.",
			Default:     strings.Join(secrets.DefaultExtensions, ","),
		},
		{
			Name:        "exclude_dirs",
			Description: "Comma-separated directory names that are never scanned.",
			Default:     strings.Join(secrets.DefaultExcludeDirs, ","),
		},
		{
			Name:        "include_vendor",
			Description: "If true, scan excluded directories too. Always on in the testing environment.",
			Default:     "false",
		},
	}
}

func (r *HardcodedSecretsRule) Configure(opts map[string]string) error {
	*r = HardcodedSecretsRule{}

	if v, ok := listOption(opts, "paths"); ok {
		r.paths = v
	}
	if v, ok := listOption(opts, "patterns"); ok {
		r.patterns = v
	}
	if v, ok := listOption(opts, "extensions"); ok {
		for i, ext := range v {
			if !strings.HasPrefix(ext, ".") {
				v[i] = "." + ext
			}
		}
		r.extensions = v
	}
	if v, ok := listOption(opts, "exclude_dirs"); ok {
		r.excludeDirs = v
	}
	b, ok, err := boolOption(opts, "include_vendor")
	if err != nil {
		return err
	}
	if ok {
		r.includeVendor = b
	}
	return nil
}

func (r *HardcodedSecretsRule) Check(ctx context.Context, t *rules.Target) (rules.Result, error) {
	paths := r.paths
	if len(paths) == 0 {
		paths = defaultSecretScanPaths
	}
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		roots = append(roots, t.Path(p))
	}

	scanner := secrets.NewScanner(secrets.Options{
		Patterns:        r.patterns,
		Extensions:      r.extensions,
		ExcludeDirs:     r.excludeDirs,
		IncludeExcluded: r.includeVendor || strings.EqualFold(t.Environment, "testing"),
		Base:            t.Root,
	}, t.Files)

	report, err := scanner.Scan(ctx, roots)
	if err != nil {
		return rules.Result{}, err
	}

	details := map[string]any{"files_scanned": report.FilesScanned}
	if len(report.MissingRoots) > 0 {
		details["missing_paths"] = report.MissingRoots
	}

	if len(report.Findings) == 0 {
		return rules.PassResult(fmt.Sprintf("No hardcoded secrets found in %d file(s)", report.FilesScanned), details), nil
	}

	details["findings"] = secrets.Records(report.Findings)
	return rules.FailResult(
		fmt.Sprintf("Found %d potential hardcoded secret(s); move them to environment variables and rotate the exposed values", len(report.Findings)),
		details,
	), nil
}

func init() {
	rules.Register(&HardcodedSecretsRule{})
}
