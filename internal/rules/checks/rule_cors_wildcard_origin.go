package checks

import (
	"context"
	"fmt"

	"secaudit/internal/rules"
)

type CORSWildcardOriginRule struct{}

func (r *CORSWildcardOriginRule) ID() string {
	return "cors-wildcard-origin"
}

func (r *CORSWildcardOriginRule) Title() string {
	return "No Wildcard CORS Origin"
}

func (r *CORSWildcardOriginRule) Description() string {
	return "Warns when CORS_ALLOWED_ORIGINS allows any origin (*). Combined with CORS_SUPPORTS_CREDENTIALS=true " +
		"this lets any site make authenticated requests and is reported as high. Applies to production and staging."
}

func (r *CORSWildcardOriginRule) Severity() rules.Severity {
	return rules.SeverityWarning
}

func (r *CORSWildcardOriginRule) AppliesToEnvironment(env string) bool {
	return inEnvironments(env, deployedEnvironments)
}

func (r *CORSWildcardOriginRule) Check(_ context.Context, t *rules.Target) (rules.Result, error) {
	origins := splitList(t.Settings.Get("CORS_ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		return rules.PassResult("CORS_ALLOWED_ORIGINS is not set", nil), nil
	}
	details := map[string]any{"origins": origins}

	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
			break
		}
	}
	if !wildcard {
		return rules.PassResult(fmt.Sprintf("CORS allows %d explicit origin(s)", len(origins)), details), nil
	}

	if creds, _ := t.Settings.Bool("CORS_SUPPORTS_CREDENTIALS"); creds {
		return rules.FailResultWithSeverity(rules.SeverityHigh,
			"CORS allows any origin with credentials; list trusted origins explicitly", details), nil
	}
	return rules.FailResult("CORS allows any origin (*); list trusted origins explicitly", details), nil
}

func init() {
	rules.Register(&CORSWildcardOriginRule{})
}
