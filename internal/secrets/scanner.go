package secrets

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"secaudit/internal/fsx"
)

const (
	defaultMaxFileSize = 2 << 20
	binarySniffLen     = 8000
	maxContentRunes    = 200
	maxLineBytes       = 1 << 20
)

var (
	DefaultPatterns = []string{
		"*_KEY", "*_SECRET", "*_TOKEN", "*_PASSWORD",
		"API_*", "SECRET_*", "PASSWORD", "PRIVATE_KEY",
	}
	DefaultExtensions      = []string{".php", ".go", ".js", ".ts", ".py", ".rb"}
	DefaultExcludeDirs     = []string{"vendor", "node_modules", ".git"}
	DefaultCommentPrefixes = []string{"//", "#", "/*", "*"}
)

// Finding is one line that looks like a hardcoded secret.
type Finding struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Pattern string `json:"pattern"`
	Content string `json:"content"`
}

// Report is the outcome of one scan.
type Report struct {
	Findings []Finding
	// MissingRoots lists scan roots that did not exist.
	MissingRoots []string
	FilesScanned int
	// FilesSkipped counts binary, oversized and unreadable files.
	FilesSkipped int
}

type Options struct {
	Patterns   []string
	Extensions []string
	// ExcludeDirs are directory names never descended into.
	ExcludeDirs []string
	// IncludeExcluded scans ExcludeDirs too. Test runs set it so vendored
	// fixtures are covered.
	IncludeExcluded bool
	CommentPrefixes []string
	// MaxFileSize skips larger files. Zero means the 2 MiB default.
	MaxFileSize int64
	// Base is the directory Finding.File is made relative to. Empty means
	// relative to each scan root.
	Base string
}

func DefaultOptions() Options {
	return Options{
		Patterns:        DefaultPatterns,
		Extensions:      DefaultExtensions,
		ExcludeDirs:     DefaultExcludeDirs,
		CommentPrefixes: DefaultCommentPrefixes,
		MaxFileSize:     defaultMaxFileSize,
	}
}

type Scanner struct {
	opts     Options
	patterns []Pattern
	files    *fsx.Walker
}

// NewScanner fills unset options from DefaultOptions. files may be nil.
func NewScanner(opts Options, files *fsx.Walker) *Scanner {
	def := DefaultOptions()
	if opts.Patterns == nil {
		opts.Patterns = def.Patterns
	}
	if opts.Extensions == nil {
		opts.Extensions = def.Extensions
	}
	if opts.ExcludeDirs == nil {
		opts.ExcludeDirs = def.ExcludeDirs
	}
	if opts.CommentPrefixes == nil {
		opts.CommentPrefixes = def.CommentPrefixes
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = def.MaxFileSize
	}
	return &Scanner{
		opts:     opts,
		patterns: CompilePatterns(opts.Patterns),
		files:    files,
	}
}

// Patterns returns the compiled patterns in match order.
func (s *Scanner) Patterns() []Pattern {
	return s.patterns
}

// MatchLine returns the first pattern matching line. Blank and comment
// lines never match.
func (s *Scanner) MatchLine(line string) (Pattern, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Pattern{}, false
	}
	for _, prefix := range s.opts.CommentPrefixes {
		if prefix != "" && strings.HasPrefix(trimmed, prefix) {
			return Pattern{}, false
		}
	}
	for _, p := range s.patterns {
		if p.Match(line) {
			return p, true
		}
	}
	return Pattern{}, false
}

// Scan walks every root and returns findings ordered by root, path and line.
// The only error is ctx's; missing roots and unreadable files are recorded
// in the report.
func (s *Scanner) Scan(ctx context.Context, roots []string) (Report, error) {
	var report Report
	filter := fsx.Filter{
		Extensions:      s.opts.Extensions,
		ExcludeDirs:     s.opts.ExcludeDirs,
		IncludeExcluded: s.opts.IncludeExcluded,
	}

	seen := make(map[string]bool)
	for _, root := range roots {
		files, err := s.files.Files(ctx, root, filter)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			if errors.Is(err, fs.ErrNotExist) {
				report.MissingRoots = append(report.MissingRoots, root)
				continue
			}
			return report, fmt.Errorf("scan %s: %w", root, err)
		}

		base := s.opts.Base
		if base == "" {
			base = root
		}
		for _, path := range files {
			if seen[path] {
				continue
			}
			seen[path] = true
			if err := ctx.Err(); err != nil {
				return report, err
			}

			findings, ok := s.scanFile(path, relPath(base, path))
			if !ok {
				report.FilesSkipped++
				continue
			}
			report.FilesScanned++
			report.Findings = append(report.Findings, findings...)
		}
	}
	return report, nil
}

// scanFile returns false when the file was skipped.
func (s *Scanner) scanFile(path, display string) ([]Finding, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > s.opts.MaxFileSize {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil || isBinary(data) {
		return nil, false
	}

	var findings []Finding
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		p, ok := s.MatchLine(line)
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			File:    display,
			Line:    lineNo,
			Pattern: p.String(),
			Content: truncate(strings.TrimSpace(line), maxContentRunes),
		})
	}
	// A line longer than maxLineBytes ends the file; earlier findings stand.
	return findings, true
}

func isBinary(data []byte) bool {
	head := data
	if len(head) > binarySniffLen {
		head = head[:binarySniffLen]
	}
	return bytes.IndexByte(head, 0) >= 0
}

func relPath(base, path string) string {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return filepath.ToSlash(path)
	}
	r, err := filepath.Rel(absBase, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return filepath.ToSlash(path)
	}
	if r == "." {
		return filepath.Base(path)
	}
	return filepath.ToSlash(r)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// Records converts findings into detail records for a rule result.
func Records(findings []Finding) []map[string]any {
	out := make([]map[string]any, 0, len(findings))
	for _, f := range findings {
		out = append(out, map[string]any{
			"file":    f.File,
			"line":    f.Line,
			"pattern": f.Pattern,
			"content": f.Content,
		})
	}
	return out
}
