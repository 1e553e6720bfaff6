package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"secaudit/internal/rules"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// configFileNames lists the supported config file names in priority order.
var configFileNames = []string{
	".secaudit.yaml",
	".secaudit.yml",
}

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect audit
	// behavior, keep these in sync:
	// - CLI flags in internal/cli/check.go
	// - default.yaml
	Audit        Audit               `yaml:"audit"`
	Rules        Rules               `yaml:"rules"`
	Environments map[string][]string `yaml:"environments"`
	Output       Output              `yaml:"output"`
	Runtime      Runtime             `yaml:"runtime"`

	// Source is the config file that was loaded, empty for built-in defaults.
	Source string `yaml:"-"`
}

type Audit struct {
	// Root is the application directory to audit (see --root).
	Root string `yaml:"root"`

	// Environment labels the run and names the profile used by --scoped (see --env).
	Environment string `yaml:"environment"`

	// Scoped selects rules through the environment profile instead of the
	// plain enablement map (see --scoped).
	Scoped bool `yaml:"scoped"`

	// EnvFile is the application's dotenv file, relative to Root (see --env-file).
	EnvFile string `yaml:"env_file"`

	// Settings override values read from EnvFile.
	Settings map[string]string `yaml:"settings"`
}

type Rules struct {
	// Enabled maps rule ids to whether they may run. Ids missing from the map
	// are disabled.
	Enabled map[string]bool `yaml:"enabled"`

	// Options holds per-rule option values from the config file, keyed by rule id.
	Options map[string]map[string]string `yaml:"options"`

	// Selector replaces Enabled with exactly the listed rule ids (see --rules).
	Selector string `yaml:"-"`

	// Set provides per-rule option overrides from the CLI.
	// Entries are of the form ruleID.option=value (repeatable; comma-separated accepted; see --set).
	Set []string `yaml:"-"`
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string `yaml:"console_format"`

	// ConsoleFilterStatus filters console output by outcome status (see --console-filter-status).
	// Allowed values: PASS, WARN, FAIL, ERROR.
	ConsoleFilterStatus []string `yaml:"console_filter_status"`

	// Report writes a Markdown report to this path (see --report).
	Report string `yaml:"report"`

	// Out writes structured output to this path (see --out).
	Out string `yaml:"out"`

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out file extension.
	OutFormat string `yaml:"out_format"`

	// Emit writes an additional structured event stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string `yaml:"emit"`

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool `yaml:"no_console"`

	// NoColor disables coloured console output (see --no-color).
	NoColor bool `yaml:"no_color"`
}

type Runtime struct {
	// Concurrency bounds how many rules run at once (see --concurrency).
	// Must be >= 1.
	Concurrency int `yaml:"concurrency"`

	// Timeout bounds the whole audit (see --timeout). Must be > 0.
	Timeout time.Duration `yaml:"timeout"`

	// Strict makes non-blocking failures (warnings) fail the run (see --strict).
	Strict bool `yaml:"strict"`

	// Verbose enables debug diagnostics.
	Verbose bool `yaml:"verbose"`

	// Watch re-runs the audit when watched files change (see --watch).
	Watch bool `yaml:"-"`
}

// New returns the built-in defaults.
func New() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return &cfg
}

// LoadFile decodes the YAML file at path on top of the built-in defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// Load reads path when given, otherwise the first config file found in dir,
// otherwise returns the built-in defaults.
func Load(path, dir string) (*Config, error) {
	if path == "" {
		path = FindConfigFileInDir(dir)
	}
	if path == "" {
		return New(), nil
	}
	return LoadFile(path)
}

// FindConfigFileInDir looks for a config file in dir.
// Returns the path if found, empty string if not found.
func FindConfigFileInDir(dir string) string {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Output.ConsoleFilterStatus = splitCommaList(c.Output.ConsoleFilterStatus)
	c.Output.Emit = splitCommaList(c.Output.Emit)

	// Audit validation
	c.Audit.Root = strings.TrimSpace(c.Audit.Root)
	if c.Audit.Root == "" {
		c.Audit.Root = "."
	}
	c.Audit.Environment = normalizeEnumValue(c.Audit.Environment)
	if c.Audit.Environment == "" {
		return errors.New("--env must not be empty")
	}

	// Environment profiles: lower-case names, trimmed ids.
	if len(c.Environments) > 0 {
		profiles := make(map[string][]string, len(c.Environments))
		for name, ids := range c.Environments {
			key := normalizeEnumValue(name)
			if key == "" {
				return errors.New("environment profile with an empty name")
			}
			var clean []string
			for _, id := range ids {
				if id = strings.TrimSpace(id); id != "" {
					clean = append(clean, id)
				}
			}
			profiles[key] = clean
		}
		c.Environments = profiles
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for i, st := range c.Output.ConsoleFilterStatus {
		parsed, ok := rules.ParseStatus(st)
		if !ok {
			return fmt.Errorf("unsupported --console-filter-status: %s (must be one of: PASS, WARN, FAIL, ERROR)", st)
		}
		c.Output.ConsoleFilterStatus[i] = string(parsed)
	}

	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", emit)
		}
		c.Output.Emit[i] = v
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	// Rule option syntax validation (rule.option=value)
	if len(c.Rules.Set) > 0 {
		if _, err := ParseRuleOptionAssignments(c.Rules.Set); err != nil {
			return err
		}
	}
	for ruleID, opts := range c.Rules.Options {
		if strings.TrimSpace(ruleID) == "" {
			return errors.New("rules.options has an entry with an empty rule id")
		}
		for name := range opts {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("rules.options.%s has an empty option name", ruleID)
			}
		}
	}

	return nil
}

// RuleOptions merges file options with --set overrides, which win.
func (c *Config) RuleOptions() (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(c.Rules.Options))
	for ruleID, opts := range c.Rules.Options {
		merged := make(map[string]string, len(opts))
		for k, v := range opts {
			merged[k] = v
		}
		out[ruleID] = merged
	}
	set, err := ParseRuleOptionAssignments(c.Rules.Set)
	if err != nil {
		return nil, err
	}
	for ruleID, opts := range set {
		if _, ok := out[ruleID]; !ok {
			out[ruleID] = make(map[string]string, len(opts))
		}
		for k, v := range opts {
			out[ruleID][k] = v
		}
	}
	return out, nil
}

// EnvFilePath resolves the dotenv file against the audit root.
func (c *Config) EnvFilePath() string {
	if c.Audit.EnvFile == "" || filepath.IsAbs(c.Audit.EnvFile) {
		return c.Audit.EnvFile
	}
	return filepath.Join(c.Audit.Root, c.Audit.EnvFile)
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseRuleOptionAssignments parses values of the form "ruleID.option=value".
//
// Notes:
// - Entries may be provided via repeated flags and/or comma-delimited lists.
// - A comma-separated part without "=" continues the previous value, so
//   "rule.paths=app,config" keeps "app,config" as one list value.
// - This validates syntax only (no validation of rule IDs or option names).
// - Empty values are allowed ("rule.option=").
func ParseRuleOptionAssignments(values []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	for _, v := range values {
		var lastRule, lastOpt string
		for _, part := range strings.Split(v, ",") {
			raw := strings.TrimSpace(part)
			if raw == "" {
				continue
			}
			left, value, ok := strings.Cut(raw, "=")
			if !ok {
				if lastRule == "" {
					return nil, fmt.Errorf("invalid --set entry %q: expected rule.option=value", raw)
				}
				out[lastRule][lastOpt] += "," + raw
				continue
			}
			ruleID, opt, ok := strings.Cut(strings.TrimSpace(left), ".")
			if !ok {
				return nil, fmt.Errorf("invalid --set entry %q: expected rule.option=value", raw)
			}
			ruleID = strings.TrimSpace(ruleID)
			opt = strings.TrimSpace(opt)
			if ruleID == "" || opt == "" {
				return nil, fmt.Errorf("invalid --set entry %q: expected non-empty rule and option", raw)
			}
			if _, ok := out[ruleID]; !ok {
				out[ruleID] = make(map[string]string)
			}
			out[ruleID][opt] = strings.TrimSpace(value)
			lastRule, lastOpt = ruleID, opt
		}
	}
	return out, nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
