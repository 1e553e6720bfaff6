package entities

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"secaudit/internal/fsx"
)

// Introspector extracts entity definitions from one source file.
type Introspector interface {
	Introspect(path string, src []byte) ([]Entity, error)
}

// Auto dispatches on file extension: .go to GoSource, .yaml and .yml to Schema.
type Auto struct{}

var errUnsupportedSource = errors.New("unsupported entity source")

func (Auto) Introspect(path string, src []byte) ([]Entity, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return GoSource{}.Introspect(path, src)
	case ".yaml", ".yml":
		return Schema{}.Introspect(path, src)
	}
	return nil, fmt.Errorf("%s: %w", path, errUnsupportedSource)
}

// Extensions handled by Auto.
var Extensions = []string{".go", ".yaml", ".yml"}

// LoadResult lists the entities found and the sources that could not be read.
type LoadResult struct {
	Entities []Entity
	Skipped  []string
	// MissingRoots lists roots that do not exist.
	MissingRoots []string
}

// Load introspects every matching file under roots. Files that fail to
// parse are skipped, not reported as errors. Go test files are ignored.
func Load(ctx context.Context, files *fsx.Walker, roots []string, in Introspector) (LoadResult, error) {
	if in == nil {
		in = Auto{}
	}
	var res LoadResult
	filter := fsx.Filter{Extensions: Extensions, ExcludeDirs: []string{"vendor", "node_modules", ".git", "testdata"}}

	for _, root := range roots {
		paths, err := files.Files(ctx, root, filter)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			if errors.Is(err, fs.ErrNotExist) {
				res.MissingRoots = append(res.MissingRoots, root)
				continue
			}
			return res, fmt.Errorf("load entities from %s: %w", root, err)
		}
		for _, path := range paths {
			if strings.HasSuffix(path, "_test.go") {
				continue
			}
			src, err := os.ReadFile(path)
			if err != nil {
				res.Skipped = append(res.Skipped, path)
				continue
			}
			found, err := in.Introspect(path, src)
			if err != nil {
				res.Skipped = append(res.Skipped, path)
				continue
			}
			res.Entities = append(res.Entities, found...)
		}
	}
	return res, nil
}
