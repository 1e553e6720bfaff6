package rules

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

const (
	OptionSeverity     = "severity"
	OptionEnvironments = "environments"
	OptionWaive        = "waive"
)

// Policy holds the per-rule settings every rule accepts regardless of its
// own options.
type Policy struct {
	Severity     Severity
	Environments []string
	WaiveReason  string
}

func (p *Policy) Options() []Option {
	return []Option{
		{
			Name:        OptionSeverity,
			Description: "Override the default severity reported on failure (info, warning, error, high, critical).",
		},
		{
			Name:        OptionEnvironments,
			Description: "Comma-separated list of environments the rule applies to. Replaces the rule's built-in applicability.",
		},
		{
			Name:        OptionWaive,
			Description: "Reason for accepting a failure. A waived failure is reported as a pass.",
		},
	}
}

// Configure parses the policy options. Absent options reset to defaults.
func (p *Policy) Configure(opts map[string]string) error {
	*p = Policy{}

	if val := strings.TrimSpace(opts[OptionSeverity]); val != "" {
		sev, err := ParseSeverity(val)
		if err != nil {
			return fmt.Errorf("%s: %w", OptionSeverity, err)
		}
		p.Severity = sev
	}

	if val := opts[OptionEnvironments]; val != "" {
		for _, s := range strings.Split(val, ",") {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" && !slices.Contains(p.Environments, s) {
				p.Environments = append(p.Environments, s)
			}
		}
	}

	p.WaiveReason = strings.TrimSpace(opts[OptionWaive])
	return nil
}

// Apply re-grades a failure to the configured severity, then converts it
// into a pass when the policy waives it. A re-graded result keeps the
// severity the rule reported under the "reported_severity" detail.
func (p *Policy) Apply(result Result) Result {
	if result.Passed() {
		return result
	}
	if p.Severity != "" && result.severity != p.Severity {
		if result.severity != "" {
			details := result.Details()
			if details == nil {
				details = map[string]any{}
			}
			details["reported_severity"] = string(result.severity)
			result.details = details
		}
		result.severity = p.Severity
	}
	if p.WaiveReason == "" {
		return result
	}
	details := result.Details()
	if details == nil {
		details = map[string]any{}
	}
	details["waived"] = p.WaiveReason
	out := PassResult(fmt.Sprintf("Waived failure: %s (%s)", result.Message(), p.WaiveReason), details)
	out.ruleID = result.ruleID
	return out
}

// PolicyWrapper decorates a Rule with the standard policy options.
type PolicyWrapper struct {
	Rule
	policy Policy
}

// WithPolicy wraps r unless it is already wrapped.
func WithPolicy(r Rule) Rule {
	if _, ok := r.(*PolicyWrapper); ok {
		return r
	}
	return &PolicyWrapper{Rule: r}
}

// Unwrap returns the decorated rule.
func (w *PolicyWrapper) Unwrap() Rule {
	return w.Rule
}

func (w *PolicyWrapper) Severity() Severity {
	if w.policy.Severity != "" {
		return w.policy.Severity
	}
	return w.Rule.Severity()
}

func (w *PolicyWrapper) AppliesToEnvironment(env string) bool {
	if len(w.policy.Environments) > 0 {
		return slices.Contains(w.policy.Environments, strings.ToLower(env))
	}
	return w.Rule.AppliesToEnvironment(env)
}

// Check runs the inner rule and then applies the waiver.
func (w *PolicyWrapper) Check(ctx context.Context, t *Target) (Result, error) {
	result, err := w.Rule.Check(ctx, t)
	if err != nil {
		return result, err
	}
	return w.policy.Apply(result), nil
}

// Options returns the policy options followed by the inner rule's own.
func (w *PolicyWrapper) Options() []Option {
	opts := w.policy.Options()
	if cr, ok := w.Rule.(ConfigurableRule); ok {
		opts = append(opts, cr.Options()...)
	}
	return opts
}

func (w *PolicyWrapper) Configure(opts map[string]string) error {
	if err := w.policy.Configure(opts); err != nil {
		return err
	}
	if cr, ok := w.Rule.(ConfigurableRule); ok {
		return cr.Configure(opts)
	}
	return nil
}
