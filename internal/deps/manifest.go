package deps

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

// ErrNoManifest is returned when the lock manifest does not exist.
var ErrNoManifest = errors.New("no lock manifest")

// DefaultManifest is the lock file name looked up in the application root.
const DefaultManifest = "composer.lock"

type Kind string

const (
	KindProduction  Kind = "production"
	KindDevelopment Kind = "development"
)

// Package is one installed package from the lock manifest.
type Package struct {
	Name    string
	Version string
	Kind    Kind
	// LastUpdated is nil when the manifest records no release time.
	LastUpdated *time.Time
	Abandoned   bool
	// Replacement is the suggested successor of an abandoned package.
	Replacement string
}

type lockFile struct {
	Packages    []lockPackage `json:"packages"`
	PackagesDev []lockPackage `json:"packages-dev"`
}

type lockPackage struct {
	Name      string      `json:"name"`
	Version   string      `json:"version"`
	Time      string      `json:"time"`
	Abandoned abandonment `json:"abandoned"`
}

// abandonment decodes "abandoned": true | false | "vendor/replacement".
type abandonment struct {
	set         bool
	replacement string
}

func (a *abandonment) UnmarshalJSON(b []byte) error {
	var flag bool
	if err := json.Unmarshal(b, &flag); err == nil {
		a.set = flag
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("abandoned: expected bool or string, got %s", string(b))
	}
	a.set = true
	a.replacement = strings.TrimSpace(name)
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// ReadManifest parses the lock manifest at path. A missing file returns an
// error wrapping ErrNoManifest.
func ReadManifest(path string) ([]Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoManifest)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	pkgs, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pkgs, nil
}

// ParseManifest decodes a composer-style lock document. Production
// packages come first, then development packages, each in manifest order.
func ParseManifest(data []byte) ([]Package, error) {
	var lf lockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	out := make([]Package, 0, len(lf.Packages)+len(lf.PackagesDev))
	for _, p := range lf.Packages {
		out = append(out, p.toPackage(KindProduction))
	}
	for _, p := range lf.PackagesDev {
		out = append(out, p.toPackage(KindDevelopment))
	}
	return out, nil
}

func (p lockPackage) toPackage(kind Kind) Package {
	return Package{
		Name:        strings.TrimSpace(p.Name),
		Version:     strings.TrimSpace(p.Version),
		Kind:        kind,
		LastUpdated: parseTime(p.Time),
		Abandoned:   p.Abandoned.set,
		Replacement: p.Abandoned.replacement,
	}
}
