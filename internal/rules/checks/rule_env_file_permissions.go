package checks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"secaudit/internal/rules"
)

const defaultEnvFileMaxMode fs.FileMode = 0o640

type EnvFilePermissionsRule struct {
	maxMode fs.FileMode
}

func (r *EnvFilePermissionsRule) ID() string {
	return "env-file-permissions"
}

func (r *EnvFilePermissionsRule) Title() string {
	return "Environment File Permissions"
}

func (r *EnvFilePermissionsRule) Description() string {
	return "Verifies that the dotenv file holding application secrets is not readable or writable by other users. " +
		"Permission bits beyond max_mode fail the rule. Not checked on Windows."
}

func (r *EnvFilePermissionsRule) Severity() rules.Severity {
	return rules.SeverityError
}

func (r *EnvFilePermissionsRule) AppliesToEnvironment(string) bool {
	return true
}

func (r *EnvFilePermissionsRule) Options() []rules.Option {
	return []rules.Option{
		{
			Name:        "max_mode",
			Description: "Most permissive octal mode allowed for the dotenv file.",
			Default:     fmt.Sprintf("%04o", defaultEnvFileMaxMode),
		},
	}
}

func (r *EnvFilePermissionsRule) Configure(opts map[string]string) error {
	r.maxMode = 0
	v, ok := optionValue(opts, "max_mode")
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 8, 32)
	if err != nil || n > 0o777 {
		return fmt.Errorf("invalid value for max_mode: %s (expected an octal mode such as 0600)", v)
	}
	r.maxMode = fs.FileMode(n)
	return nil
}

func (r *EnvFilePermissionsRule) Check(_ context.Context, t *rules.Target) (rules.Result, error) {
	path := t.Settings.Source()
	if path == "" {
		return rules.PassResult("No environment file configured", nil), nil
	}
	details := map[string]any{"file": displayPath(t.Root, path)}

	if runtime.GOOS == "windows" {
		return rules.PassResult("File permissions are not checked on Windows", details), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rules.PassResult("Environment file not found", details), nil
		}
		return rules.Result{}, fmt.Errorf("stat environment file: %w", err)
	}

	maxMode := r.maxMode
	if r.maxMode == 0 {
		maxMode = defaultEnvFileMaxMode
	}
	perm := info.Mode().Perm()
	details["mode"] = fmt.Sprintf("%04o", perm)
	details["max_mode"] = fmt.Sprintf("%04o", maxMode)

	if extra := perm &^ maxMode; extra != 0 {
		return rules.FailResult(
			fmt.Sprintf("Environment file mode %04o is too permissive (allowed %04o); run chmod %04o", perm, maxMode, perm&maxMode),
			details,
		), nil
	}
	return rules.PassResult(fmt.Sprintf("Environment file mode %04o", perm), details), nil
}

func displayPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && filepath.IsLocal(rel) {
		return filepath.ToSlash(rel)
	}
	return path
}

func init() {
	rules.Register(&EnvFilePermissionsRule{})
}
