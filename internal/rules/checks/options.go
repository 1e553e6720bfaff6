package checks

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// optionValue returns the trimmed option value, or false when it is unset
// or blank.
func optionValue(opts map[string]string, key string) (string, bool) {
	v, ok := opts[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func listOption(opts map[string]string, key string) ([]string, bool) {
	v, ok := optionValue(opts, key)
	if !ok {
		return nil, false
	}
	return splitList(v), true
}

func intOption(opts map[string]string, key string, min int) (int, bool, error) {
	v, ok := optionValue(opts, key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("invalid value for %s: %s", key, v)
	}
	if n < min {
		return 0, false, fmt.Errorf("%s must be >= %d, got %d", key, min, n)
	}
	return n, true, nil
}

func boolOption(opts map[string]string, key string) (bool, bool, error) {
	v, ok := optionValue(opts, key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("invalid value for %s: %s", key, v)
	}
	return b, true, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Deployment stages used by the environment predicates.
var (
	deployedEnvironments    = []string{"production", "staging"}
	developmentEnvironments = []string{"local", "development", "testing"}
)

func inEnvironments(env string, envs []string) bool {
	return slices.Contains(envs, strings.ToLower(strings.TrimSpace(env)))
}
