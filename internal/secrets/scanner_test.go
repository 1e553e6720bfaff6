package secrets

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"secaudit/internal/fsx"
)

func writeFile(t *testing.T, root, name, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMatchLine(t *testing.T) {
	s := NewScanner(Options{Patterns: []string{"API_*", "*_KEY"}}, nil)

	tests := []struct {
		name        string
		line        string
		wantMatch   bool
		wantPattern string
	}{
		{"commented assignment", `// $API_KEY = 'x'`, false, ""},
		{"hash comment", `# API_KEY = "abc"`, false, ""},
		{"block comment", ` * $API_KEY = 'abc'`, false, ""},
		{"blank", "   ", false, ""},
		{"first pattern wins", `$API_KEY = 'sk_live_123'`, true, "API_*"},
		{"second pattern", `$STRIPE_KEY = 'sk_live_123'`, true, "*_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := s.MatchLine(tt.line)
			if ok != tt.wantMatch {
				t.Fatalf("MatchLine(%q) ok = %v, want %v", tt.line, ok, tt.wantMatch)
			}
			if ok && p.String() != tt.wantPattern {
				t.Errorf("pattern = %q, want %q", p.String(), tt.wantPattern)
			}
		})
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/config.php", strings.Join([]string{
		"<?php",
		"// $API_KEY = 'x'",
		"$API_KEY = 'sk_live_123';",
		"$name = 'public';",
		"$DB_PASSWORD = \"hunter2\";",
	}, "\n"))
	writeFile(t, root, "app/Service.go", "package app\n\nconst x = 1\nvar SERVICE_TOKEN = \"abc123\"\n")
	writeFile(t, root, "vendor/lib/secret.php", "$API_KEY = 'vendored';\n")
	writeFile(t, root, "README.md", "API_KEY = 'docs'\n")
	writeFile(t, root, "app/blob.php", "$API_KEY = 'x';\x00\x01")

	s := NewScanner(Options{
		Patterns: []string{"API_*", "*_KEY", "*_PASSWORD", "*_TOKEN"},
		Base:     root,
	}, fsx.NewWalker())

	report, err := s.Scan(context.Background(), []string{root, filepath.Join(root, "missing")})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []Finding{
		{File: "app/Service.go", Line: 4, Pattern: "*_TOKEN", Content: `var SERVICE_TOKEN = "abc123"`},
		{File: "app/config.php", Line: 3, Pattern: "API_*", Content: `$API_KEY = 'sk_live_123';`},
		{File: "app/config.php", Line: 5, Pattern: "*_PASSWORD", Content: `$DB_PASSWORD = "hunter2";`},
	}
	if !reflect.DeepEqual(report.Findings, want) {
		t.Errorf("Findings =\n%+v\nwant\n%+v", report.Findings, want)
	}
	if len(report.MissingRoots) != 1 {
		t.Errorf("MissingRoots = %v, want one entry", report.MissingRoots)
	}
	if report.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1 (binary file)", report.FilesSkipped)
	}
	if report.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", report.FilesScanned)
	}
}

func TestScanIncludeExcluded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vendor/lib/secret.php", "$API_KEY = 'vendored';\n")

	s := NewScanner(Options{Patterns: []string{"API_*"}, IncludeExcluded: true}, nil)
	report, err := s.Scan(context.Background(), []string{root})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Findings) != 1 || report.Findings[0].File != "vendor/lib/secret.php" {
		t.Errorf("unexpected findings %+v", report.Findings)
	}
}

func TestScanSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.php", "$API_KEY = 'abc';\n"+strings.Repeat("x", 64))

	s := NewScanner(Options{Patterns: []string{"API_*"}, MaxFileSize: 16}, nil)
	report, err := s.Scan(context.Background(), []string{root})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Findings) != 0 || report.FilesSkipped != 1 {
		t.Errorf("expected oversized file to be skipped, got %+v", report)
	}
}

func TestFindingContentIsTruncated(t *testing.T) {
	root := t.TempDir()
	long := "$API_KEY = '" + strings.Repeat("a", 400) + "';"
	writeFile(t, root, "a.php", long+"\n")

	report, err := NewScanner(Options{Patterns: []string{"API_*"}}, nil).Scan(context.Background(), []string{root})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(report.Findings))
	}
	if got := len([]rune(report.Findings[0].Content)); got != maxContentRunes+3 {
		t.Errorf("content length = %d, want %d", got, maxContentRunes+3)
	}
}

func TestScanCanceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.php", "$API_KEY = 'abc';\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScanner(Options{}, nil).Scan(ctx, []string{root}); err == nil {
		t.Error("expected context error")
	}
}

func TestProperty_CommentedAssignmentsNeverMatch(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	s := NewScanner(Options{Patterns: []string{"API_*", "*_KEY"}}, nil)
	nonEmpty := func(v string) bool { return v != "" }
	genPrefix := gen.OneConstOf("//", "#", "/*", "*")

	properties.Property("commented secret assignments produce no match", prop.ForAll(
		func(prefix, name, value string) bool {
			line := prefix + " $API_" + name + " = '" + value + "'"
			_, ok := s.MatchLine(line)
			return !ok
		},
		genPrefix,
		gen.AlphaString(),
		gen.AlphaString().SuchThat(nonEmpty),
	))

	properties.Property("uncommented secret assignments match exactly one pattern", prop.ForAll(
		func(name, value string) bool {
			line := "$API_" + name + " = '" + value + "'"
			p, ok := s.MatchLine(line)
			return ok && p.String() == "API_*"
		},
		gen.AlphaString(),
		gen.AlphaString().SuchThat(nonEmpty),
	))

	properties.TestingRun(t)
}

func TestProperty_ScanIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	base := t.TempDir()
	genLine := gen.OneGenOf(
		gen.AlphaString(),
		gen.AlphaString().SuchThat(func(v string) bool { return v != "" }).Map(func(v string) string {
			return "$API_KEY = '" + v + "';"
		}),
		gen.Const("// $SECRET_KEY = 'x';"),
	)

	properties.Property("scanning the same tree twice yields identical findings", prop.ForAll(
		func(lines []string) bool {
			root, err := os.MkdirTemp(base, "tree")
			if err != nil {
				return false
			}
			if err := os.WriteFile(filepath.Join(root, "a.php"), []byte(strings.Join(lines, "\n")), 0o644); err != nil {
				return false
			}
			if err := os.WriteFile(filepath.Join(root, "b.js"), []byte(strings.Join(lines, "\r\n")), 0o644); err != nil {
				return false
			}

			s := NewScanner(Options{Patterns: []string{"API_*", "*_KEY"}}, fsx.NewWalker())
			first, err1 := s.Scan(context.Background(), []string{root})
			second, err2 := s.Scan(context.Background(), []string{root})
			return err1 == nil && err2 == nil && reflect.DeepEqual(first, second)
		},
		gen.SliceOf(genLine),
	))

	properties.TestingRun(t)
}
