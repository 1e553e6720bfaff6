package rules

import (
	"context"
)

// Rule is a named, independently executable security check.
type Rule interface {
	ID() string
	Title() string
	Description() string

	// Severity is the default severity reported when Check fails without
	// naming one explicitly.
	Severity() Severity

	AppliesToEnvironment(env string) bool

	// Check evaluates the rule against the explicit inputs in t.
	// Rules MUST NOT read process-wide state such as os.Getenv.
	Check(ctx context.Context, t *Target) (Result, error)
}

type Option struct {
	Name        string
	Description string
	Default     string
}

type ConfigurableRule interface {
	Rule
	Options() []Option
	Configure(opts map[string]string) error
}
