package flags

// Package flags defines canonical CLI flag names shared across the CLI and the
// config overlay. Keeping these as constants helps avoid drift between Cobra
// flag wiring and the code that copies explicitly set flags onto a loaded
// config file.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&opts.Audit.Environment, flags.FlagEnv, "", "...")
//	arg := "--" + flags.FlagEnv
const (
	// Global
	FlagConfig  = "config"
	FlagVerbose = "verbose"

	// Audit target
	FlagRoot    = "root"
	FlagEnv     = "env"
	FlagEnvFile = "env-file"
	FlagScoped  = "scoped"

	// Rules
	FlagRules = "rules"
	FlagSet   = "set"

	// Output
	FlagConsoleFormat       = "console-format"
	FlagConsoleFilterStatus = "console-filter-status"
	FlagReport              = "report"
	FlagOut                 = "out"
	FlagOutFormat           = "out-format"
	FlagEmit                = "emit"
	FlagNoConsole           = "no-console"
	FlagNoColor             = "no-color"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
	FlagStrict      = "strict"
	FlagWatch       = "watch"
)
