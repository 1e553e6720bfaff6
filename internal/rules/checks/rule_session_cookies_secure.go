package checks

import (
	"context"
	"fmt"
	"strings"

	"secaudit/internal/rules"
)

type SessionCookiesSecureRule struct{}

func (r *SessionCookiesSecureRule) ID() string {
	return "session-cookies-secure"
}

func (r *SessionCookiesSecureRule) Title() string {
	return "Session Cookies Secure"
}

func (r *SessionCookiesSecureRule) Description() string {
	return "Verifies the session cookie flags:\n" +
		"- SESSION_SECURE_COOKIE must be true\n" +
		"- SESSION_HTTP_ONLY must not be false\n" +
		"- SESSION_SAME_SITE must be lax or strict (unset defaults to lax)\n\n" +
		"Applies to production and staging."
}

func (r *SessionCookiesSecureRule) Severity() rules.Severity {
	return rules.SeverityError
}

func (r *SessionCookiesSecureRule) AppliesToEnvironment(env string) bool {
	return inEnvironments(env, deployedEnvironments)
}

func (r *SessionCookiesSecureRule) Check(_ context.Context, t *rules.Target) (rules.Result, error) {
	var problems []string

	if secure, ok := t.Settings.Bool("SESSION_SECURE_COOKIE"); !ok || !secure {
		problems = append(problems, "SESSION_SECURE_COOKIE is not true; cookies are sent over plain http")
	}
	if _, set := t.Settings.Lookup("SESSION_HTTP_ONLY"); set {
		if httpOnly, ok := t.Settings.Bool("SESSION_HTTP_ONLY"); !ok || !httpOnly {
			problems = append(problems, "SESSION_HTTP_ONLY is not true; scripts can read the session cookie")
		}
	}
	switch sameSite := strings.ToLower(strings.TrimSpace(t.Settings.Get("SESSION_SAME_SITE"))); sameSite {
	case "", "lax", "strict":
	case "none", "null":
		problems = append(problems, fmt.Sprintf("SESSION_SAME_SITE is %q; cookies are sent on cross-site requests", sameSite))
	default:
		problems = append(problems, fmt.Sprintf("SESSION_SAME_SITE has an unrecognised value %q", sameSite))
	}

	if len(problems) == 0 {
		return rules.PassResult("Session cookies are secure, http-only and same-site", nil), nil
	}
	return rules.FailResult(
		fmt.Sprintf("%d session cookie setting(s) are insecure", len(problems)),
		map[string]any{"problems": problems},
	), nil
}

func init() {
	rules.Register(&SessionCookiesSecureRule{})
}
