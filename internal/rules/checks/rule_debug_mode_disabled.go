package checks

import (
	"context"
	"fmt"

	"secaudit/internal/rules"
)

const defaultDebugSetting = "APP_DEBUG"

type DebugModeDisabledRule struct {
	setting string
}

func (r *DebugModeDisabledRule) ID() string {
	return "debug-mode-disabled"
}

func (r *DebugModeDisabledRule) Title() string {
	return "Debug Mode Disabled"
}

func (r *DebugModeDisabledRule) Description() string {
	return "Verifies that application debug mode is off outside development.\n\n" +
		"Debug pages disclose stack traces, configuration values and sometimes credentials. The rule does not apply " +
		"to the local, development and testing environments."
}

func (r *DebugModeDisabledRule) Severity() rules.Severity {
	return rules.SeverityCritical
}

func (r *DebugModeDisabledRule) AppliesToEnvironment(env string) bool {
	return !inEnvironments(env, developmentEnvironments)
}

func (r *DebugModeDisabledRule) Options() []rules.Option {
	return []rules.Option{
		{
			Name:        "setting",
			Description: "Name of the debug setting.",
			Default:     defaultDebugSetting,
		},
	}
}

func (r *DebugModeDisabledRule) Configure(opts map[string]string) error {
	r.setting, _ = optionValue(opts, "setting")
	return nil
}

func (r *DebugModeDisabledRule) Check(_ context.Context, t *rules.Target) (rules.Result, error) {
	key := r.setting
	if key == "" {
		key = defaultDebugSetting
	}
	raw, set := t.Settings.Lookup(key)
	details := map[string]any{"setting": key}
	if !set {
		return rules.PassResult(fmt.Sprintf("%s is not set; debug mode is off by default", key), details), nil
	}

	details["value"] = raw
	on, ok := t.Settings.Bool(key)
	if !ok {
		return rules.WarningResult(fmt.Sprintf("%s has an unrecognised value %q; set it to false", key, raw), details), nil
	}
	if on {
		return rules.FailResult(fmt.Sprintf("Debug mode is enabled (%s=%s) in %s", key, raw, t.Environment), details), nil
	}
	return rules.PassResult("Debug mode is disabled", details), nil
}

func init() {
	rules.Register(&DebugModeDisabledRule{})
}
