package output

import (
	"fmt"
	"sort"
	"strings"

	"secaudit/internal/rules"
)

// Categories
const (
	CategorySecrets        = "Credentials are committed to source or left unset"
	CategoryDataProtection = "Sensitive data is stored without protection"
	CategoryDependencies   = "Dependencies are vulnerable, abandoned or unsupported"
	CategoryDebug          = "Debug facilities are exposed"
	CategoryTransport      = "Traffic or sessions are not protected in transit"
	CategoryFileAccess     = "Configuration files are readable by other users"
	CategoryOther          = "Other"
)

var ruleCategories = map[string]string{
	"hardcoded-secrets":         CategorySecrets,
	"app-key-set":               CategorySecrets,
	"sensitive-data-encryption": CategoryDataProtection,
	"dependency-audit":          CategoryDependencies,
	"debug-mode-disabled":       CategoryDebug,
	"https-enforced":            CategoryTransport,
	"session-cookies-secure":    CategoryTransport,
	"cors-wildcard-origin":      CategoryTransport,
	"env-file-permissions":      CategoryFileAccess,
}

var rulePriority = map[string]int{
	"hardcoded-secrets":         1,
	"app-key-set":               2,
	"debug-mode-disabled":       3,
	"dependency-audit":          4,
	"sensitive-data-encryption": 5,
	"https-enforced":            6,
	"session-cookies-secure":    7,
	"env-file-permissions":      8,
	"cors-wildcard-origin":      9,
}

var CategoryRiskDescription = map[string]string{
	CategorySecrets:        "Leaked or missing keys let attackers forge sessions and reach third-party services.",
	CategoryDataProtection: "Plain-text personal and credential fields turn any database leak into a full disclosure.",
	CategoryDependencies:   "Known-vulnerable packages are the easiest entry point for automated attacks.",
	CategoryDebug:          "Debug pages disclose stack traces, configuration and sometimes credentials.",
	CategoryTransport:      "Unencrypted or cross-site traffic exposes cookies and tokens to interception.",
	CategoryFileAccess:     "World-readable configuration hands secrets to every local account.",
}

// categoryOrder is the display order of the Top Risk Areas.
var categoryOrder = []string{
	CategorySecrets,
	CategoryDebug,
	CategoryDependencies,
	CategoryDataProtection,
	CategoryTransport,
	CategoryFileAccess,
	CategoryOther,
}

func getCategory(ruleID string) string {
	if cat, ok := ruleCategories[ruleID]; ok {
		return cat
	}
	return CategoryOther
}

func getPriority(ruleID string) int {
	if p, ok := rulePriority[ruleID]; ok {
		return p
	}
	return 999
}

// normalizeErrorReason collapses whitespace, strips the fault prefix the
// engine adds, and truncates long messages.
func normalizeErrorReason(errText string) string {
	s := strings.Join(strings.Fields(errText), " ")
	for _, prefix := range []string{"Evaluation failed: ", "Rule panicked: "} {
		s = strings.TrimPrefix(s, prefix)
	}
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}

type categoryStats struct {
	Name     string
	Rules    []string
	Severity rules.Severity
}

// computeCategoryStats groups failing outcomes by category, in display order.
func computeCategoryStats(outcomes []rules.Outcome) []*categoryStats {
	stats := make(map[string]*categoryStats)
	for _, o := range outcomes {
		st := o.Status()
		if st != rules.StatusFail && st != rules.StatusWarn {
			continue
		}
		cat := getCategory(o.RuleID)
		cs, ok := stats[cat]
		if !ok {
			cs = &categoryStats{Name: cat}
			stats[cat] = cs
		}
		cs.Rules = append(cs.Rules, o.RuleID)
		cs.Severity = rules.MaxSeverity(cs.Severity, o.Result.Severity())
	}

	var out []*categoryStats
	for _, c := range categoryOrder {
		if cs, ok := stats[c]; ok {
			sort.Slice(cs.Rules, func(i, j int) bool {
				return getPriority(cs.Rules[i]) < getPriority(cs.Rules[j])
			})
			out = append(out, cs)
		}
	}
	return out
}

// sortByPriority orders outcomes by severity (most severe first), then by
// rule priority, then by id.
func sortByPriority(outcomes []rules.Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		si, sj := outcomes[i].Result.Severity().Rank(), outcomes[j].Result.Severity().Rank()
		if si != sj {
			return si > sj
		}
		pi, pj := getPriority(outcomes[i].RuleID), getPriority(outcomes[j].RuleID)
		if pi != pj {
			return pi < pj
		}
		return outcomes[i].RuleID < outcomes[j].RuleID
	})
}

func formatList(items []string, max int) string {
	if len(items) == 0 {
		return ""
	}
	if len(items) <= max {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s, +%d more", strings.Join(items[:max], ", "), len(items)-max)
}
