// Package secrets finds hardcoded secrets assigned to variables or array
// keys in a source tree.
package secrets

import (
	"regexp"
	"strings"
)

// Pattern is a compiled wildcard secret pattern such as "*_KEY" or "API_*".
// The zero value never matches.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// CompilePattern never fails: a pattern that cannot be compiled yields a
// Pattern that never matches.
//
// The compiled expression requires an optional sigil ($ or @), the
// wildcard-expanded name, an assignment operator (=, :=, => or :) and a
// quoted non-empty literal without whitespace. "*" expands to any run of
// non-quote characters. Matching is case-insensitive and the name must start
// at a token boundary, so a pattern without wildcards is an exact token.
func CompilePattern(raw string) Pattern {
	p := Pattern{raw: raw}
	name := strings.TrimSpace(raw)
	if name == "" || strings.Trim(name, "*") == "" {
		return p
	}

	var b strings.Builder
	b.WriteString(`(?i)(?:^|[^\w$@])[$@]?['"]?`)
	for i, part := range strings.Split(name, "*") {
		if i > 0 {
			b.WriteString(`[^'"]*`)
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString(`['"]?\]?\s*(?:=>|:=|=|:)\s*['"][^'"\s]+['"]`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return p
	}
	p.re = re
	return p
}

// CompilePatterns compiles every pattern, keeping order.
func CompilePatterns(raw []string) []Pattern {
	out := make([]Pattern, 0, len(raw))
	for _, r := range raw {
		out = append(out, CompilePattern(r))
	}
	return out
}

func (p Pattern) String() string { return p.raw }

// Valid reports whether the pattern can ever match.
func (p Pattern) Valid() bool { return p.re != nil }

func (p Pattern) Match(line string) bool {
	return p.re != nil && p.re.MatchString(line)
}
