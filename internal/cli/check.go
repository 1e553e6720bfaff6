package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"secaudit/internal/config"
	"secaudit/internal/engine"
	"secaudit/internal/flags"
	"secaudit/internal/rules"

	"github.com/spf13/cobra"
)

// checkOpts receives the check flags. Only flags the user set are copied
// onto the loaded config (see overlayFlags).
var checkOpts = config.New()

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Audit an application directory",
	Long: `Audit an application directory and report security problems.

secaudit reads the application's dotenv file, source tree and lock manifest.
It never modifies the application and never contacts the network.

Configuration:
  Settings are taken from, in increasing precedence:
  - built-in defaults
  - the config file (--config, or .secaudit.yaml / .secaudit.yml in --root)
  - flags given on the command line

Rule selection:
  By default every rule enabled in the config runs, and --env only labels the run.
  With --scoped, only the rules listed in the environment's profile run, and only
  when they apply to that environment. --rules replaces the enabled set with
  exactly the listed rule IDs.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --report: write a Markdown report
	- --no-console: suppress the console sink (use with --emit/--out for machine output)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events with a
	"type" field (run.started, rule.result, run.finished). Rule results are
	represented as an Event with type "rule.result" and a nested "result" object.

Exit codes:
	0 = clean run, no blocking failures
	1 = blocking failures detected (or any failure with --strict)
	2 = partial failure (some rules could not be evaluated)
	3 = fatal error (audit did not run)

Examples:
  # Audit the current directory as production
  secaudit check

  # Audit a staging deployment with its profile only
  secaudit check --root /srv/app --env staging --scoped

  # Scan extra directories for secrets and fail on warnings
  secaudit check --set hardcoded-secrets.paths=app,config,resources --strict

  # Accept a known failure with a recorded reason
  secaudit check --set cors-wildcard-origin.waive="public read-only API"

	# AI Agent: stream machine-readable events to stdout
	secaudit check --no-console --emit ndjson
`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(engine.ExitFatal)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(engine.ExitFatal)
		}

		configureColor(cfg.Output.NoColor)
		logger := newLogger(os.Stderr, cfg.Runtime.Verbose)
		if cfg.Source != "" {
			logger.Debug("loaded config file", "path", cfg.Source)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		var code int
		if cfg.Runtime.Watch {
			code = watch(ctx, cmd, cfg, logger)
		} else {
			code = engine.Run(ctx, cfg, rules.Default(), logger)
		}
		stop()
		os.Exit(code)
	},
}

// loadConfig reads the config file and applies the flags the user set.
// A relative audit root in a config file is resolved against the file's
// directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	rootChanged := cmd.Flags().Changed(flags.FlagRoot)
	dir := "."
	if rootChanged {
		dir = checkOpts.Audit.Root
	}

	cfg, err := config.Load(configPath, dir)
	if err != nil {
		return nil, err
	}
	if cfg.Source != "" && !rootChanged && !filepath.IsAbs(cfg.Audit.Root) {
		cfg.Audit.Root = filepath.Join(filepath.Dir(cfg.Source), cfg.Audit.Root)
	}

	overlayFlags(cmd, cfg, checkOpts)
	if verbose {
		cfg.Runtime.Verbose = true
	}
	return cfg, nil
}

type flagOverlay struct {
	name  string
	apply func(dst, src *config.Config)
}

var checkOverlays = []flagOverlay{
	{flags.FlagRoot, func(dst, src *config.Config) { dst.Audit.Root = src.Audit.Root }},
	{flags.FlagEnv, func(dst, src *config.Config) { dst.Audit.Environment = src.Audit.Environment }},
	{flags.FlagEnvFile, func(dst, src *config.Config) { dst.Audit.EnvFile = src.Audit.EnvFile }},
	{flags.FlagScoped, func(dst, src *config.Config) { dst.Audit.Scoped = src.Audit.Scoped }},
	{flags.FlagRules, func(dst, src *config.Config) { dst.Rules.Selector = src.Rules.Selector }},
	{flags.FlagSet, func(dst, src *config.Config) { dst.Rules.Set = src.Rules.Set }},
	{flags.FlagConsoleFormat, func(dst, src *config.Config) { dst.Output.ConsoleFormat = src.Output.ConsoleFormat }},
	{flags.FlagConsoleFilterStatus, func(dst, src *config.Config) { dst.Output.ConsoleFilterStatus = src.Output.ConsoleFilterStatus }},
	{flags.FlagReport, func(dst, src *config.Config) { dst.Output.Report = src.Output.Report }},
	{flags.FlagOut, func(dst, src *config.Config) { dst.Output.Out = src.Output.Out }},
	{flags.FlagOutFormat, func(dst, src *config.Config) { dst.Output.OutFormat = src.Output.OutFormat }},
	{flags.FlagEmit, func(dst, src *config.Config) { dst.Output.Emit = src.Output.Emit }},
	{flags.FlagNoConsole, func(dst, src *config.Config) { dst.Output.NoConsole = src.Output.NoConsole }},
	{flags.FlagNoColor, func(dst, src *config.Config) { dst.Output.NoColor = src.Output.NoColor }},
	{flags.FlagConcurrency, func(dst, src *config.Config) { dst.Runtime.Concurrency = src.Runtime.Concurrency }},
	{flags.FlagTimeout, func(dst, src *config.Config) { dst.Runtime.Timeout = src.Runtime.Timeout }},
	{flags.FlagStrict, func(dst, src *config.Config) { dst.Runtime.Strict = src.Runtime.Strict }},
	{flags.FlagWatch, func(dst, src *config.Config) { dst.Runtime.Watch = src.Runtime.Watch }},
}

// overlayFlags copies the values of explicitly set flags from src to dst.
func overlayFlags(cmd *cobra.Command, dst, src *config.Config) {
	for _, o := range checkOverlays {
		if cmd.Flags().Changed(o.name) {
			o.apply(dst, src)
		}
	}
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// MAINTAINER NOTE: If you add/change/remove check flags here, add the
	// matching entry to checkOverlays and keep internal/config in sync.

	// Audit target
	checkCmd.Flags().StringVar(&checkOpts.Audit.Root, flags.FlagRoot, checkOpts.Audit.Root, "Application directory to audit")
	checkCmd.Flags().StringVar(&checkOpts.Audit.Environment, flags.FlagEnv, checkOpts.Audit.Environment, "Environment name (labels the run; selects the profile with --scoped)")
	checkCmd.Flags().StringVar(&checkOpts.Audit.EnvFile, flags.FlagEnvFile, checkOpts.Audit.EnvFile, "Application dotenv file, relative to --root")
	checkCmd.Flags().BoolVar(&checkOpts.Audit.Scoped, flags.FlagScoped, false, "Run only the rules in the environment profile that apply to --env")

	// Rules
	checkCmd.Flags().StringVar(&checkOpts.Rules.Selector, flags.FlagRules, "", "Comma-separated rule IDs to run instead of the enabled set")
	checkCmd.Flags().StringSliceVar(&checkOpts.Rules.Set, flags.FlagSet, nil, "Per-rule options as ruleID.option=value (repeatable; comma-separated accepted)")

	// Output
	checkCmd.Flags().StringVar(&checkOpts.Output.ConsoleFormat, flags.FlagConsoleFormat, checkOpts.Output.ConsoleFormat, "Console output format: text|json|ndjson")
	checkCmd.Flags().StringSliceVar(&checkOpts.Output.ConsoleFilterStatus, flags.FlagConsoleFilterStatus, nil, "Filter console output by status (PASS, WARN, FAIL, ERROR). Comma-separated.")
	checkCmd.Flags().StringVar(&checkOpts.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	checkCmd.Flags().StringVar(&checkOpts.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	checkCmd.Flags().StringVar(&checkOpts.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	checkCmd.Flags().StringSliceVar(&checkOpts.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	checkCmd.Flags().BoolVar(&checkOpts.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")
	checkCmd.Flags().BoolVar(&checkOpts.Output.NoColor, flags.FlagNoColor, false, "Disable coloured console output")

	// Runtime
	checkCmd.Flags().IntVar(&checkOpts.Runtime.Concurrency, flags.FlagConcurrency, checkOpts.Runtime.Concurrency, "Rules evaluated in parallel")
	checkCmd.Flags().DurationVar(&checkOpts.Runtime.Timeout, flags.FlagTimeout, checkOpts.Runtime.Timeout, "Global timeout")
	checkCmd.Flags().BoolVar(&checkOpts.Runtime.Strict, flags.FlagStrict, false, "Treat warnings as failures for the exit code")
	checkCmd.Flags().BoolVar(&checkOpts.Runtime.Watch, flags.FlagWatch, false, "Re-run the audit when the config, dotenv file or source tree changes")
}
