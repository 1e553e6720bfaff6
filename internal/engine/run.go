package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"secaudit/internal/config"
	"secaudit/internal/fsx"
	"secaudit/internal/output"
	"secaudit/internal/rules"
	"secaudit/internal/settings"
)

func setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(nil, cfg.Output.ConsoleFormat, cfg.Output.ConsoleFilterStatus)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Emit Sinks (additional structured streams)
	for _, emit := range cfg.Output.Emit {
		es, err := output.NewEmitSink(os.Stdout, emit)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if cfg.Output.Report != "" {
		rs, err := output.NewReportSink(cfg.Output.Report)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

// applyRuleOptions routes per-rule options (config file rules.options, then
// repeated --set flags) to the matching rule's Configure method. Configurable
// rules without options are reset to their defaults.
//
// Example:
//
//	secaudit check --set hardcoded-secrets.paths=app,config
func applyRuleOptions(cfg *config.Config, reg *rules.Registry) error {
	assignments, err := cfg.RuleOptions()
	if err != nil {
		return err
	}

	for ruleID, opts := range assignments {
		r, ok := reg.Get(ruleID)
		if !ok {
			return fmt.Errorf("unknown rule ID %q", ruleID)
		}
		cr, ok := r.(rules.ConfigurableRule)
		if !ok {
			return fmt.Errorf("rule %q does not support options", ruleID)
		}

		allowed := make(map[string]struct{})
		for _, opt := range cr.Options() {
			allowed[opt.Name] = struct{}{}
		}
		for name := range opts {
			if _, ok := allowed[name]; !ok {
				return fmt.Errorf("unknown option %q for rule %q", name, ruleID)
			}
		}
	}

	for _, r := range reg.List() {
		cr, ok := r.(rules.ConfigurableRule)
		if !ok {
			continue
		}
		if err := cr.Configure(assignments[r.ID()]); err != nil {
			return fmt.Errorf("configure rule %q: %w", r.ID(), err)
		}
	}
	return nil
}

// resolvePolicy builds the engine policy. --rules replaces the enablement
// map with exactly the listed ids.
func resolvePolicy(cfg *config.Config, reg *rules.Registry, logger *slog.Logger) (Policy, error) {
	policy := Policy{Environments: cfg.Environments}
	if cfg.Rules.Selector != "" {
		selected, err := reg.Resolve(cfg.Rules.Selector)
		if err != nil {
			return Policy{}, err
		}
		policy.Enabled = Enable(selected).Enabled
		return policy, nil
	}

	policy.Enabled = make(map[string]bool, len(cfg.Rules.Enabled))
	for id, on := range cfg.Rules.Enabled {
		if _, ok := reg.Get(id); !ok {
			logger.Warn("rules.enabled names an unknown rule", "rule", id)
			continue
		}
		policy.Enabled[id] = on
	}
	return policy, nil
}

func buildTarget(cfg *config.Config) (*rules.Target, error) {
	root, err := filepath.Abs(cfg.Audit.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", cfg.Audit.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("audit root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("audit root %s is not a directory", root)
	}

	envFile := cfg.EnvFilePath()
	if envFile != "" {
		if envFile, err = filepath.Abs(envFile); err != nil {
			return nil, fmt.Errorf("resolve env file: %w", err)
		}
	}
	st, err := settings.Load(envFile, cfg.Audit.Settings)
	if err != nil {
		return nil, err
	}

	return &rules.Target{
		Root:        root,
		Environment: cfg.Audit.Environment,
		Settings:    st,
		Now:         time.Now(),
		Files:       fsx.NewWalker(),
	}, nil
}

// Run performs one audit described by cfg with the rules in reg and returns
// the process exit code. Progress goes to stderr; results go to the sinks
// configured in cfg.Output.
func Run(ctx context.Context, cfg *config.Config, reg *rules.Registry, logger *slog.Logger) int {
	status := func(format string, args ...any) {
		if !cfg.Output.NoConsole {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}

	status("Resolving rules...")
	policy, err := resolvePolicy(cfg, reg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving rules: %v\n", err)
		return exitCodeForRun(true, false, false)
	}
	if err := applyRuleOptions(cfg, reg); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring rules: %v\n", err)
		return exitCodeForRun(true, false, false)
	}

	target, err := buildTarget(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing audit: %v\n", err)
		return exitCodeForRun(true, false, false)
	}
	if !target.Settings.Found() && target.Settings.Source() != "" {
		logger.Debug("settings file not found", "path", target.Settings.Source())
	}

	e := New(reg,
		WithPolicy(policy),
		WithConcurrency(cfg.Runtime.Concurrency),
		WithLogger(logger),
	)
	selected := e.EnabledRules()
	if cfg.Audit.Scoped {
		selected = e.RulesForEnvironment(target.Environment)
	}
	status("Selected %d rules.", len(selected))

	outMgr, err := setupOutputManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, false, false)
	}
	defer outMgr.Close()

	_ = outMgr.Start(target.Root, target.Environment, len(selected))

	runCtx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()
	outcomes, err := e.Execute(runCtx, target, selected)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Audit aborted: %v\n", err)
		code := exitCodeForRun(true, false, false)
		_ = outMgr.Finish(target.Environment, rules.Summary{}, code)
		return code
	}

	_ = outMgr.Outcomes(outcomes)
	summary := rules.Summarize(outcomes)
	code := ExitCode(summary, cfg.Runtime.Strict)
	_ = outMgr.Finish(target.Environment, summary, code)
	return code
}
