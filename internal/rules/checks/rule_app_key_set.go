package checks

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"secaudit/internal/rules"
)

const (
	defaultAppKeySetting = "APP_KEY"
	defaultAppKeyMinLen  = 32
	base64KeyPrefix      = "base64:"
)

// placeholderKeys are values shipped in example dotenv files.
var placeholderKeys = []string{"somerandomstring", "changeme", "change_me", "secret", "your-app-key"}

type AppKeySetRule struct {
	setting   string
	minLength int
}

func (r *AppKeySetRule) ID() string {
	return "app-key-set"
}

func (r *AppKeySetRule) Title() string {
	return "Application Key Set"
}

func (r *AppKeySetRule) Description() string {
	return "Verifies that the application encryption key is set, is not a placeholder and is long enough.\n\n" +
		"A \"base64:\" prefixed key is decoded before its length is measured. Without a strong key, encrypted " +
		"cookies and signed URLs can be forged."
}

func (r *AppKeySetRule) Severity() rules.Severity {
	return rules.SeverityCritical
}

func (r *AppKeySetRule) AppliesToEnvironment(string) bool {
	return true
}

func (r *AppKeySetRule) Options() []rules.Option {
	return []rules.Option{
		{
			Name:        "setting",
			Description: "Name of the key setting.",
			Default:     defaultAppKeySetting,
		},
		{
			Name:        "min_length",
			Description: "Minimum key length in bytes, after base64 decoding.",
			Default:     strconv.Itoa(defaultAppKeyMinLen),
		},
	}
}

func (r *AppKeySetRule) Configure(opts map[string]string) error {
	*r = AppKeySetRule{}
	r.setting, _ = optionValue(opts, "setting")
	n, _, err := intOption(opts, "min_length", 1)
	if err != nil {
		return err
	}
	r.minLength = n
	return nil
}

func (r *AppKeySetRule) Check(_ context.Context, t *rules.Target) (rules.Result, error) {
	key := r.setting
	if key == "" {
		key = defaultAppKeySetting
	}
	minLen := r.minLength
	if minLen == 0 {
		minLen = defaultAppKeyMinLen
	}
	details := map[string]any{"setting": key}

	value := strings.TrimSpace(t.Settings.Get(key))
	if value == "" {
		return rules.FailResult(fmt.Sprintf("%s is not set; generate a key before deploying", key), details), nil
	}
	for _, p := range placeholderKeys {
		if strings.EqualFold(value, p) {
			return rules.FailResult(fmt.Sprintf("%s is a placeholder value; generate a real key", key), details), nil
		}
	}

	length := len(value)
	if encoded, ok := strings.CutPrefix(value, base64KeyPrefix); ok {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return rules.FailResult(fmt.Sprintf("%s has a base64: prefix but is not valid base64", key), details), nil
		}
		length = len(decoded)
	}
	details["length"] = length
	if length < minLen {
		details["min_length"] = minLen
		return rules.FailResult(fmt.Sprintf("%s is too short (%d bytes, need at least %d)", key, length, minLen), details), nil
	}
	return rules.PassResult(fmt.Sprintf("%s is set", key), details), nil
}

func init() {
	rules.Register(&AppKeySetRule{})
}
