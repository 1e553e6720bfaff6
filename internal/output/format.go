package output

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"secaudit/internal/rules"

	"github.com/fatih/color"
)

var (
	passColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	failColor  = color.New(color.FgRed, color.Bold)
	errorColor = color.New(color.FgMagenta, color.Bold)
	dimColor   = color.New(color.Faint)
)

func statusLabel(st rules.Status) string {
	label := "[" + string(st) + "]"
	switch st {
	case rules.StatusPass:
		return passColor.Sprint(label)
	case rules.StatusWarn:
		return warnColor.Sprint(label)
	case rules.StatusFail:
		return failColor.Sprint(label)
	case rules.StatusError:
		return errorColor.Sprint(label)
	}
	return label
}

// detailLines renders a result's details as short human-readable lines.
// Record lists (findings, issues) become one line per record, capped at
// limit records per key; limit <= 0 means no cap.
func detailLines(details map[string]any, limit int) []string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		switch v := details[k].(type) {
		case []map[string]any:
			if len(v) == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s (%d):", k, len(v)))
			shown := v
			if limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}
			for _, rec := range shown {
				lines = append(lines, "  - "+describeRecord(rec))
			}
			if len(shown) < len(v) {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(v)-len(shown)))
			}
		case []string:
			if len(v) == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s", k, strings.Join(v, ", ")))
		default:
			lines = append(lines, fmt.Sprintf("%s: %v", k, v))
		}
	}
	return lines
}

// describeRecord prefers a record's message, then a file:line location,
// then falls back to sorted key=value pairs.
func describeRecord(rec map[string]any) string {
	if msg, ok := rec["message"].(string); ok && msg != "" {
		return msg
	}
	if file, ok := rec["file"].(string); ok {
		loc := file
		if line, ok := rec["line"]; ok {
			loc = fmt.Sprintf("%s:%v", file, line)
		}
		if pattern, ok := rec["pattern"].(string); ok {
			return fmt.Sprintf("%s (%s)", loc, pattern)
		}
		return loc
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, rec[k]))
	}
	return strings.Join(parts, " ")
}

// flushStream pushes buffered stream output (for example a bufio.Writer
// wrapping stdout) so NDJSON consumers see each event as it is written.
func flushStream(w io.Writer) error {
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
