package deps

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"gopkg.in/yaml.v3"

	"secaudit/internal/rules"
)

// Advisory is one known vulnerability affecting a package.
type Advisory struct {
	Package     string         `yaml:"package"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Affected    []string       `yaml:"affected"`
	Fixed       []string       `yaml:"fixed"`
	Severity    rules.Severity `yaml:"severity"`
	CVE         string         `yaml:"cve"`
}

// Database indexes advisories by package name.
type Database struct {
	byPackage map[string][]Advisory
}

func NewDatabase(advisories ...Advisory) *Database {
	db := &Database{byPackage: make(map[string][]Advisory)}
	db.Add(advisories...)
	return db
}

func (db *Database) Add(advisories ...Advisory) {
	for _, a := range advisories {
		name := strings.ToLower(strings.TrimSpace(a.Package))
		db.byPackage[name] = append(db.byPackage[name], a)
	}
}

// Merge adds every advisory of other.
func (db *Database) Merge(other *Database) {
	if other == nil {
		return
	}
	for _, list := range other.byPackage {
		db.Add(list...)
	}
}

func (db *Database) Lookup(pkg string) []Advisory {
	if db == nil {
		return nil
	}
	return db.byPackage[strings.ToLower(strings.TrimSpace(pkg))]
}

func (db *Database) Len() int {
	if db == nil {
		return 0
	}
	n := 0
	for _, list := range db.byPackage {
		n += len(list)
	}
	return n
}

// BuiltinDatabase returns the advisories shipped with the binary.
func BuiltinDatabase() *Database {
	return NewDatabase(
		Advisory{
			Package:     "laravel/framework",
			Title:       "SQL injection through query builder bindings",
			Description: "Unexpected bindings could be passed to the query builder when an array was given to a column comparison.",
			Affected:    []string{"<6.20.11", ">=7.0,<7.30.2", ">=8.0,<8.22.1"},
			Fixed:       []string{"6.20.11", "7.30.2", "8.22.1"},
			Severity:    rules.SeverityHigh,
			CVE:         "CVE-2021-21263",
		},
		Advisory{
			Package:     "facade/ignition",
			Title:       "Remote code execution through debug mode solutions",
			Description: "Unauthenticated remote code execution via file_put_contents when debug mode is enabled.",
			Affected:    []string{"<2.5.2"},
			Fixed:       []string{"2.5.2"},
			Severity:    rules.SeverityCritical,
			CVE:         "CVE-2021-3129",
		},
		Advisory{
			Package:     "guzzlehttp/guzzle",
			Title:       "Cookie headers leaked on cross-domain redirects",
			Description: "Cookie headers were forwarded when following a redirect to a different host.",
			Affected:    []string{"<6.5.6", ">=7.0,<7.4.3"},
			Fixed:       []string{"6.5.6", "7.4.3"},
			Severity:    rules.SeverityHigh,
			CVE:         "CVE-2022-29248",
		},
		Advisory{
			Package:     "symfony/http-kernel",
			Title:       "Remote code execution through HttpCache internal headers",
			Description: "Untrusted responses could set the internal X-Body-Eval and X-Body-File headers used when restoring cached responses.",
			Affected:    []string{">=4.4.0,<4.4.13", ">=5.0.0,<5.1.5"},
			Fixed:       []string{"4.4.13", "5.1.5"},
			Severity:    rules.SeverityHigh,
			CVE:         "CVE-2020-15094",
		},
		Advisory{
			Package:     "phpmailer/phpmailer",
			Title:       "Remote code execution through an untrusted language path",
			Description: "On Windows, an untrusted lang_path could be used to load and execute arbitrary code.",
			Affected:    []string{"<6.5.0"},
			Fixed:       []string{"6.5.0"},
			Severity:    rules.SeverityHigh,
			CVE:         "CVE-2021-34551",
		},
	)
}

type databaseFile struct {
	Advisories []Advisory `yaml:"advisories"`
}

// ParseDatabase decodes a YAML advisory list:
//
//	advisories:
//	  - package: vendor/name
//	    title: ...
//	    affected: ["<1.2.3", ">=2.0,<2.1"]
//	    fixed: ["1.2.3", "2.1"]
//	    severity: high
//	    cve: CVE-2024-0001
//
// "medium" and "moderate" map to error, "low" to warning.
func ParseDatabase(data []byte) (*Database, error) {
	var f databaseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse advisory database: %w", err)
	}
	db := NewDatabase()
	for i, a := range f.Advisories {
		if strings.TrimSpace(a.Package) == "" {
			return nil, fmt.Errorf("advisory %d: package is required", i)
		}
		if len(a.Affected) == 0 {
			return nil, fmt.Errorf("advisory %d (%s): affected is required", i, a.Package)
		}
		sev, err := normalizeAdvisorySeverity(string(a.Severity))
		if err != nil {
			return nil, fmt.Errorf("advisory %d (%s): %w", i, a.Package, err)
		}
		a.Severity = sev
		db.Add(a)
	}
	return db, nil
}

func normalizeAdvisorySeverity(raw string) (rules.Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return rules.SeverityHigh, nil
	case "medium", "moderate":
		return rules.SeverityError, nil
	case "low":
		return rules.SeverityWarning, nil
	}
	return rules.ParseSeverity(raw)
}

// LoadDatabase reads a YAML advisory database from path.
func LoadDatabase(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read advisory database: %w", err)
	}
	return ParseDatabase(data)
}

// LoadVerifiedDatabase reads the database at path after checking its
// detached OpenPGP signature against the keyring.
func LoadVerifiedDatabase(path, signaturePath, keyringPath string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read advisory database: %w", err)
	}
	sig, err := os.ReadFile(signaturePath)
	if err != nil {
		return nil, fmt.Errorf("read advisory signature: %w", err)
	}
	keyring, err := os.ReadFile(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	if err := VerifyDatabase(data, sig, keyring); err != nil {
		return nil, err
	}
	return ParseDatabase(data)
}

const armoredSignaturePrefix = "-----BEGIN PGP SIGNATURE-----"

// VerifyDatabase checks a detached signature over data. Both signature and
// keyring may be armored or binary.
func VerifyDatabase(data, signature, keyring []byte) error {
	keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(keyring))
	if err != nil {
		keys, err = openpgp.ReadKeyRing(bytes.NewReader(keyring))
		if err != nil {
			return fmt.Errorf("read keyring: %w", err)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("read keyring: no keys found")
	}

	if bytes.HasPrefix(bytes.TrimSpace(signature), []byte(armoredSignaturePrefix)) {
		_, err = openpgp.CheckArmoredDetachedSignature(keys, bytes.NewReader(data), bytes.NewReader(signature), nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(keys, bytes.NewReader(data), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("advisory database signature verification failed: %w", err)
	}
	return nil
}
