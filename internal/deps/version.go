// Package deps audits an installed-package lock manifest for known
// vulnerabilities, staleness and abandonment.
package deps

import (
	"math"
	"strconv"
	"strings"
)

// CompareVersions compares dotted versions segment by segment, numerically.
// A leading "v" is ignored, as is any non-numeric suffix of a segment
// ("1.2.3-beta" compares as 1.2.3). Missing segments count as zero.
// Segments of any length compare exactly. It returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	pa := parseVersion(a)
	pb := parseVersion(b)
	n := max(len(pa), len(pb))
	for i := 0; i < n; i++ {
		x, y := "0", "0"
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if c := compareSegment(x, y); c != 0 {
			return c
		}
	}
	return 0
}

// compareSegment orders two digit strings without leading zeros.
func compareSegment(x, y string) int {
	if len(x) != len(y) {
		if len(x) > len(y) {
			return 1
		}
		return -1
	}
	return strings.Compare(x, y)
}

// Major returns the first numeric segment, or -1 if there is none. A segment
// too large for an int is reported as math.MaxInt.
func Major(v string) int {
	p := parseVersion(v)
	if len(p) == 0 {
		return -1
	}
	n, err := strconv.Atoi(p[0])
	if err != nil {
		return math.MaxInt
	}
	return n
}

// parseVersion returns the numeric prefix of every segment as a digit
// string with leading zeros removed ("0" when a segment has no digits).
func parseVersion(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "v"), "V")
	if i := strings.IndexAny(raw, "+-"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		end := 0
		for end < len(p) && p[end] >= '0' && p[end] <= '9' {
			end++
		}
		digits := strings.TrimLeft(p[:end], "0")
		if digits == "" {
			digits = "0"
		}
		out = append(out, digits)
	}
	return out
}

// IsVersion reports whether raw has at least one numeric leading segment.
func IsVersion(raw string) bool {
	raw = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "v"), "V")
	return raw != "" && raw[0] >= '0' && raw[0] <= '9'
}
