package entities

import (
	"fmt"
	"slices"
	"strings"

	"secaudit/internal/rules"
)

var (
	// DefaultKeywords are the sensitive-name substrings matched against field names.
	DefaultKeywords = []string{
		"password", "secret", "token", "key", "credit_card", "ssn",
		"phone", "email", "bank", "tax_id",
		"iban", "passport", "birth", "salary", "address",
	}
	DefaultCriticalKeywords = []string{"password", "secret", "token", "key", "credit_card", "ssn"}
	DefaultErrorKeywords    = []string{"phone", "email", "bank", "tax_id"}
)

var (
	// Tokens that mark a field as protected when they share a source line
	// with the field name, or appear in its cast.
	protectionTokens = []string{"encrypt", "cipher", "hash", "bcrypt", "argon"}
	// Tokens that mark an accessor body as protecting its field.
	accessorTokens = []string{"encrypt", "decrypt", "hash", "bcrypt", "argon"}
	// Tokens that show an encryption mechanism exists at all.
	encryptionTokens = []string{"encrypt", "decrypt", "cipher"}
)

// SecurityLevel grades how well sensitive fields are protected overall.
type SecurityLevel string

const (
	LevelExcellent SecurityLevel = "excellent"
	LevelGood      SecurityLevel = "good"
	LevelFair      SecurityLevel = "fair"
	LevelPoor      SecurityLevel = "poor"
	LevelCritical  SecurityLevel = "critical"
)

// Issue is one unprotected sensitive field.
type Issue struct {
	Entity   string
	Source   string
	Field    string
	Keyword  string
	Severity rules.Severity
}

func (i Issue) Message() string {
	return fmt.Sprintf("%s.%s looks sensitive (%s) but is not hidden, encrypted or hashed", i.Entity, i.Field, i.Keyword)
}

type Report struct {
	Entities          int
	Sensitive         int
	Protected         int
	Issues            []Issue
	EncryptionPresent bool
	Level             SecurityLevel
}

// MaxSeverity is the highest issue severity, or empty with no issues.
func (r Report) MaxSeverity() rules.Severity {
	var worst rules.Severity
	for _, i := range r.Issues {
		worst = rules.MaxSeverity(worst, i.Severity)
	}
	return worst
}

// Records converts issues into detail records for a rule result.
func (r Report) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Issues))
	for _, i := range r.Issues {
		out = append(out, map[string]any{
			"entity":   i.Entity,
			"source":   i.Source,
			"field":    i.Field,
			"keyword":  i.Keyword,
			"severity": string(i.Severity),
			"message":  i.Message(),
		})
	}
	return out
}

// Classifier decides which fields are sensitive and how severe an
// unprotected one is. The zero value uses the default keyword lists.
type Classifier struct {
	Keywords         []string
	CriticalKeywords []string
	ErrorKeywords    []string
}

func (c Classifier) keywords() []string {
	if len(c.Keywords) > 0 {
		return c.Keywords
	}
	return DefaultKeywords
}

// Sensitive returns the first keyword contained in field, ignoring case and
// separators, and the severity tier of the most severe matching keyword.
func (c Classifier) Sensitive(field string) (string, rules.Severity, bool) {
	name := normalize(field)
	var (
		matched string
		sev     rules.Severity
	)
	for _, kw := range c.keywords() {
		if !strings.Contains(name, normalize(kw)) {
			continue
		}
		tier := c.tier(kw)
		if matched == "" || tier.Rank() > sev.Rank() {
			matched, sev = kw, tier
		}
	}
	return matched, sev, matched != ""
}

func (c Classifier) tier(kw string) rules.Severity {
	critical := c.CriticalKeywords
	if critical == nil {
		critical = DefaultCriticalKeywords
	}
	errs := c.ErrorKeywords
	if errs == nil {
		errs = DefaultErrorKeywords
	}
	switch {
	case containsFold(critical, kw):
		return rules.SeverityCritical
	case containsFold(errs, kw):
		return rules.SeverityError
	}
	return rules.SeverityWarning
}

// Protected reports whether a field is hidden, cast to an encrypting or
// hashing type, wrapped by an accessor that encrypts or hashes, or named on
// a line of the entity's own source that also carries an encryption token.
// The field may be named by its entity name or its source identifier.
func Protected(e Entity, field string) bool {
	if e.IsHidden(field) {
		return true
	}
	if containsAny(strings.ToLower(e.Cast(field)), protectionTokens) {
		return true
	}
	if containsAny(strings.ToLower(e.Accessor(field)), accessorTokens) {
		return true
	}
	if e.SourceText == "" {
		return false
	}
	names := e.sourceNames(field)
	for _, line := range strings.Split(e.SourceText, "\n") {
		lower := strings.ToLower(line)
		if containsAny(lower, names) && containsAny(lower, protectionTokens) {
			return true
		}
	}
	return false
}

// Classify checks every fillable field of every entity.
func (c Classifier) Classify(entities []Entity) Report {
	r := Report{Entities: len(entities)}
	for _, e := range entities {
		if usesEncryption(e) {
			r.EncryptionPresent = true
		}
		for _, field := range e.Fillable {
			kw, sev, ok := c.Sensitive(field)
			if !ok {
				continue
			}
			r.Sensitive++
			if Protected(e, field) {
				r.Protected++
				continue
			}
			r.Issues = append(r.Issues, Issue{
				Entity:   e.Name,
				Source:   e.Source,
				Field:    field,
				Keyword:  kw,
				Severity: sev,
			})
		}
	}
	r.Level = Level(r.Sensitive, r.Protected, r.EncryptionPresent)
	return r
}

// Level grades protected/sensitive. Without any encryption mechanism, good
// and fair drop one level.
func Level(sensitive, protected int, encryption bool) SecurityLevel {
	if sensitive == 0 {
		return LevelExcellent
	}
	ratio := float64(protected) / float64(sensitive)
	var level SecurityLevel
	switch {
	case protected >= sensitive && encryption:
		return LevelExcellent
	case protected >= sensitive:
		level = LevelGood
	case ratio >= 0.75:
		level = LevelGood
	case ratio >= 0.5:
		level = LevelFair
	case ratio > 0:
		level = LevelPoor
	default:
		return LevelCritical
	}
	if !encryption && protected < sensitive {
		switch level {
		case LevelGood:
			level = LevelFair
		case LevelFair:
			level = LevelPoor
		}
	}
	return level
}

func usesEncryption(e Entity) bool {
	for _, v := range e.Casts {
		if containsAny(strings.ToLower(v), encryptionTokens) {
			return true
		}
	}
	for _, v := range e.Accessors {
		if containsAny(strings.ToLower(v), encryptionTokens) {
			return true
		}
	}
	return containsAny(strings.ToLower(e.SourceText), encryptionTokens)
}

func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

func containsAny(s string, tokens []string) bool {
	return slices.ContainsFunc(tokens, func(t string) bool {
		return strings.Contains(s, t)
	})
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool {
		return strings.EqualFold(v, s)
	})
}
