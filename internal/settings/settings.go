// Package settings exposes the audited application's runtime settings.
//
// Values come from the application's dotenv file and may be overridden
// from the audit configuration. Rules read settings through this type
// instead of the process environment.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

type Settings struct {
	values map[string]string
	source string
	found  bool
}

// Load reads the dotenv file at path and applies overrides on top.
// A missing file is not an error: the result is empty (plus overrides) and
// Found reports false.
func Load(path string, overrides map[string]string) (Settings, error) {
	s := Settings{values: map[string]string{}, source: path}
	if path != "" {
		vals, err := godotenv.Read(path)
		switch {
		case err == nil:
			s.found = true
			maps.Copy(s.values, vals)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Settings{}, fmt.Errorf("read env file %s: %w", path, err)
		}
	}
	maps.Copy(s.values, overrides)
	return s, nil
}

// FromMap builds settings from literal values.
func FromMap(values map[string]string) Settings {
	return Settings{values: maps.Clone(values), found: true}
}

// Source is the dotenv path the settings were loaded from.
func (s Settings) Source() string { return s.source }

// Found reports whether the dotenv file existed.
func (s Settings) Found() bool { return s.found }

func (s Settings) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s Settings) Get(key string) string {
	return s.values[key]
}

// GetDefault returns def when key is unset or blank.
func (s Settings) GetDefault(key, def string) string {
	if v := strings.TrimSpace(s.values[key]); v != "" {
		return v
	}
	return def
}

// Bool interprets a setting as a boolean. The second return is false when
// the key is unset or the value is not a recognised boolean.
func (s Settings) Bool(key string) (bool, bool) {
	v, ok := s.values[key]
	if !ok {
		return false, false
	}
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	switch v {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off", "":
		return false, true
	}
	return false, false
}

func (s Settings) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}
