package checks

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"secaudit/internal/rules"
)

type HTTPSEnforcedRule struct{}

func (r *HTTPSEnforcedRule) ID() string {
	return "https-enforced"
}

func (r *HTTPSEnforcedRule) Title() string {
	return "HTTPS Enforced"
}

func (r *HTTPSEnforcedRule) Description() string {
	return "Verifies that the application URL uses https, or that HTTPS redirection is forced (FORCE_HTTPS=true). " +
		"Applies to production and staging."
}

func (r *HTTPSEnforcedRule) Severity() rules.Severity {
	return rules.SeverityError
}

func (r *HTTPSEnforcedRule) AppliesToEnvironment(env string) bool {
	return inEnvironments(env, deployedEnvironments)
}

func (r *HTTPSEnforcedRule) Check(_ context.Context, t *rules.Target) (rules.Result, error) {
	raw := strings.TrimSpace(t.Settings.Get("APP_URL"))
	forced, _ := t.Settings.Bool("FORCE_HTTPS")
	details := map[string]any{"app_url": raw, "force_https": forced}

	if raw == "" {
		if forced {
			return rules.PassResult("FORCE_HTTPS is enabled", details), nil
		}
		return rules.FailResult("APP_URL is not set and FORCE_HTTPS is not enabled", details), nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return rules.FailResult(fmt.Sprintf("APP_URL %q is not an absolute URL", raw), details), nil
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return rules.PassResult("APP_URL uses https", details), nil
	case "http":
		if forced {
			return rules.WarningResult("APP_URL uses http; relying on FORCE_HTTPS redirection", details), nil
		}
		return rules.FailResult("APP_URL uses http and FORCE_HTTPS is not enabled", details), nil
	}
	return rules.FailResult(fmt.Sprintf("APP_URL has unexpected scheme %q", u.Scheme), details), nil
}

func init() {
	rules.Register(&HTTPSEnforcedRule{})
}
