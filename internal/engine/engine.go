package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"secaudit/internal/rules"

	"golang.org/x/sync/errgroup"
)

// Policy is the selection data handed to the engine by the configuration
// layer. Both maps are read-only once the engine is built.
type Policy struct {
	// Enabled lists rule ids that may run. A rule missing from the map is
	// disabled.
	Enabled map[string]bool
	// Environments maps a profile name to the rule ids it runs.
	Environments map[string][]string
}

// Enable returns a policy that enables every given rule.
func Enable(rs []rules.Rule) Policy {
	p := Policy{Enabled: make(map[string]bool, len(rs))}
	for _, r := range rs {
		p.Enabled[r.ID()] = true
	}
	return p
}

func (p Policy) profile(env string) ([]string, bool) {
	if ids, ok := p.Environments[env]; ok {
		return ids, true
	}
	for name, ids := range p.Environments {
		if strings.EqualFold(name, env) {
			return ids, true
		}
	}
	return nil, false
}

type Option func(*Engine)

func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithConcurrency bounds how many rules run at once. Values below 2 run the
// rules one after another.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

// WithLogger sets the diagnostics logger. A nil logger discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine selects rules and runs them so that no single rule can abort the
// batch: every selected rule yields exactly one outcome.
type Engine struct {
	registry    *rules.Registry
	policy      Policy
	concurrency int
	logger      *slog.Logger
}

// New builds an engine over reg. A nil registry starts empty.
func New(reg *rules.Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = rules.NewRegistry()
	}
	e := &Engine{registry: reg, concurrency: 1}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// RegisterRule adds r to the engine's registry. Registering an id twice keeps
// the last rule and is logged as a configuration problem.
func (e *Engine) RegisterRule(r rules.Rule) {
	if e.registry.Register(r) {
		e.logger.Warn("duplicate rule registration; last one wins", "rule", r.ID())
	}
}

// Rules lists every registered rule in registration order.
func (e *Engine) Rules() []rules.Rule {
	return e.registry.List()
}

// EnabledRules returns the registered rules whose id is enabled.
func (e *Engine) EnabledRules() []rules.Rule {
	var out []rules.Rule
	for _, r := range e.registry.List() {
		if e.policy.Enabled[r.ID()] {
			out = append(out, r)
		}
	}
	return out
}

// RulesForEnvironment returns the enabled rules listed in env's profile that
// also apply to env. Without a profile for env it falls back to EnabledRules.
func (e *Engine) RulesForEnvironment(env string) []rules.Rule {
	ids, ok := e.policy.profile(env)
	if !ok {
		e.logger.Debug("no environment profile; using enabled rules", "environment", env)
		return e.EnabledRules()
	}

	listed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, known := e.registry.Get(id); !known {
			e.logger.Warn("environment profile names an unknown rule", "environment", env, "rule", id)
			continue
		}
		listed[id] = true
	}

	var out []rules.Rule
	for _, r := range e.registry.List() {
		id := r.ID()
		if !listed[id] || !e.policy.Enabled[id] {
			continue
		}
		if !r.AppliesToEnvironment(env) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RunChecks runs every enabled rule. The target's environment only labels
// the outcomes; it does not narrow the selection.
func (e *Engine) RunChecks(ctx context.Context, t *rules.Target) ([]rules.Outcome, error) {
	return e.Execute(ctx, t, e.EnabledRules())
}

// RunChecksForEnvironment runs RulesForEnvironment(t.Environment).
func (e *Engine) RunChecksForEnvironment(ctx context.Context, t *rules.Target) ([]rules.Outcome, error) {
	return e.Execute(ctx, t, e.RulesForEnvironment(t.Environment))
}

// Execute runs selected and returns one outcome per rule, in input order.
// Rule errors and panics become error outcomes. The returned error is set
// only when ctx ends before the batch completes; the partial batch is
// discarded.
func (e *Engine) Execute(ctx context.Context, t *rules.Target, selected []rules.Rule) ([]rules.Outcome, error) {
	if t == nil {
		t = &rules.Target{}
	}
	outcomes := make([]rules.Outcome, len(selected))

	if e.concurrency < 2 || len(selected) < 2 {
		for i, r := range selected {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = e.evaluate(ctx, t, r)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for i, r := range selected {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				outcomes[i] = e.evaluate(ctx, t, r)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// UnknownRuleID labels the outcome of a rule that panicked before reporting
// its id.
const UnknownRuleID = "<unknown>"

// evaluate is the fault boundary around a single rule.
func (e *Engine) evaluate(ctx context.Context, t *rules.Target, r rules.Rule) (out rules.Outcome) {
	out.Environment = t.Environment
	defer func() {
		if p := recover(); p != nil {
			if out.RuleID == "" {
				out.RuleID = UnknownRuleID
			}
			e.logger.Warn("rule panicked", "rule", out.RuleID, "panic", p)
			out.Result = rules.ErrorResult(out.RuleID, fmt.Sprintf("Rule panicked: %v", p))
			out.Faulted = true
		}
	}()

	out.RuleID = r.ID()
	out.Title = r.Title()
	out.Description = r.Description()
	out.Severity = r.Severity()

	e.logger.Debug("rule started", "rule", out.RuleID)
	res, err := r.Check(ctx, t)
	if err != nil {
		e.logger.Warn("rule failed to evaluate", "rule", out.RuleID, "error", err)
		out.Result = rules.ErrorResult(out.RuleID, fmt.Sprintf("Evaluation failed: %v", err))
		out.Faulted = true
		return out
	}

	// Rules usually report pass/fail and a message; the engine knows the id
	// and default severity, so it backfills them here.
	out.Result = res.Stamp(out.RuleID, out.Severity)
	e.logger.Debug("rule finished", "rule", out.RuleID, "passed", out.Result.Passed())
	return out
}
