package checks

import (
	"context"
	"fmt"
	"strings"

	"secaudit/internal/entities"
	"secaudit/internal/rules"
)

var defaultEntityPaths = []string{"app/Models", "internal/models", "models", "schemas"}

type SensitiveDataEncryptionRule struct {
	paths            []string
	keywords         []string
	criticalKeywords []string
	errorKeywords    []string
}

func (r *SensitiveDataEncryptionRule) ID() string {
	return "sensitive-data-encryption"
}

func (r *SensitiveDataEncryptionRule) Title() string {
	return "Sensitive Entity Fields Are Protected"
}

func (r *SensitiveDataEncryptionRule) Description() string {
	return "Inspects data entity definitions (Go structs and YAML schemas) for writable fields whose names look sensitive, " +
		"such as password, token or email.\n\n" +
		"A sensitive field is protected when it is hidden from serialization, cast through encryption, " +
		"or set through an accessor that encrypts or hashes it. Unprotected fields fail the rule at the severity of " +
		"the most sensitive one found."
}

func (r *SensitiveDataEncryptionRule) Severity() rules.Severity {
	return rules.SeverityCritical
}

func (r *SensitiveDataEncryptionRule) AppliesToEnvironment(string) bool {
	return true
}

func (r *SensitiveDataEncryptionRule) Options() []rules.Option {
	return []rules.Option{
		{
			Name:        "paths",
			Description: "Comma-separated directories holding entity definitions, relative to the audit root.",
			Default:     strings.Join(defaultEntityPaths, ","),
		},
		{
			Name:        "keywords",
			Description: "Comma-separated substrings that mark a field name as sensitive.",
			Default:     strings.Join(entities.DefaultKeywords, ","),
		},
		{
			Name:        "critical_keywords",
			Description: "Keywords whose unprotected fields are critical.",
			Default:     strings.Join(entities.DefaultCriticalKeywords, ","),
		},
		{
			Name:        "error_keywords",
			Description: "Keywords whose unprotected fields are errors. Other sensitive fields are warnings.",
			Default:     strings.Join(entities.DefaultErrorKeywords, ","),
		},
	}
}

func (r *SensitiveDataEncryptionRule) Configure(opts map[string]string) error {
	*r = SensitiveDataEncryptionRule{}
	if v, ok := listOption(opts, "paths"); ok {
		r.paths = v
	}
	if v, ok := listOption(opts, "keywords"); ok {
		r.keywords = v
	}
	if v, ok := listOption(opts, "critical_keywords"); ok {
		r.criticalKeywords = v
	}
	if v, ok := listOption(opts, "error_keywords"); ok {
		r.errorKeywords = v
	}
	return nil
}

func (r *SensitiveDataEncryptionRule) Check(ctx context.Context, t *rules.Target) (rules.Result, error) {
	paths := r.paths
	if len(paths) == 0 {
		paths = defaultEntityPaths
	}
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		roots = append(roots, t.Path(p))
	}

	loaded, err := entities.Load(ctx, t.Files, roots, entities.Auto{})
	if err != nil {
		return rules.Result{}, err
	}

	details := map[string]any{}
	if len(loaded.Skipped) > 0 {
		details["skipped_sources"] = loaded.Skipped
	}
	if len(loaded.Entities) == 0 {
		return rules.PassResult("No entity definitions found", details), nil
	}

	classifier := entities.Classifier{
		Keywords:         r.keywords,
		CriticalKeywords: r.criticalKeywords,
		ErrorKeywords:    r.errorKeywords,
	}
	report := classifier.Classify(loaded.Entities)

	details["entities"] = report.Entities
	details["sensitive_fields"] = report.Sensitive
	details["protected_fields"] = report.Protected
	details["encryption_present"] = report.EncryptionPresent
	details["security_level"] = string(report.Level)

	if len(report.Issues) == 0 {
		if report.Sensitive == 0 {
			return rules.PassResult(fmt.Sprintf("No sensitive fields in %d entities", report.Entities), details), nil
		}
		return rules.PassResult(fmt.Sprintf("All %d sensitive field(s) are protected", report.Sensitive), details), nil
	}

	details["issues"] = report.Records()
	return rules.FailResultWithSeverity(
		report.MaxSeverity(),
		fmt.Sprintf("%d of %d sensitive field(s) are stored without protection (security level: %s)",
			len(report.Issues), report.Sensitive, report.Level),
		details,
	), nil
}

func init() {
	rules.Register(&SensitiveDataEncryptionRule{})
}
