package deps

import (
	"fmt"
	"strings"
)

type operator string

const (
	opLT operator = "<"
	opLE operator = "<="
	opGT operator = ">"
	opGE operator = ">="
	opEQ operator = "="
)

type clause struct {
	op      operator
	version string
}

func (c clause) matches(v string) bool {
	cmp := CompareVersions(v, c.version)
	switch c.op {
	case opLT:
		return cmp < 0
	case opLE:
		return cmp <= 0
	case opGT:
		return cmp > 0
	case opGE:
		return cmp >= 0
	case opEQ:
		return cmp == 0
	}
	return false
}

// Constraint is a comma-joined conjunction of comparisons such as "<4.4.13"
// or ">=5.0,<5.4.20". A bare version means equality.
type Constraint struct {
	raw     string
	clauses []clause
}

func ParseConstraint(raw string) (Constraint, error) {
	c := Constraint{raw: raw}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Constraint{}, fmt.Errorf("constraint %q: empty clause", raw)
		}
		cl := clause{op: opEQ}
		for _, op := range []operator{opLE, opGE, opLT, opGT, "==", opEQ} {
			if rest, ok := strings.CutPrefix(part, string(op)); ok {
				cl.op = op
				if op == "==" {
					cl.op = opEQ
				}
				part = strings.TrimSpace(rest)
				break
			}
		}
		if !IsVersion(part) {
			return Constraint{}, fmt.Errorf("constraint %q: invalid version %q", raw, part)
		}
		cl.version = part
		c.clauses = append(c.clauses, cl)
	}
	return c, nil
}

func (c Constraint) String() string { return c.raw }

// Matches reports whether version satisfies every clause. The zero
// Constraint never matches.
func (c Constraint) Matches(version string) bool {
	if len(c.clauses) == 0 || !IsVersion(version) {
		return false
	}
	for _, cl := range c.clauses {
		if !cl.matches(version) {
			return false
		}
	}
	return true
}

// MatchesAny reports whether version satisfies at least one constraint.
// Constraints that do not parse never match.
func MatchesAny(constraints []string, version string) (string, bool) {
	for _, raw := range constraints {
		c, err := ParseConstraint(raw)
		if err != nil {
			continue
		}
		if c.Matches(version) {
			return raw, true
		}
	}
	return "", false
}
