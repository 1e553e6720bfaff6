package fsx

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Filter restricts which files a walk returns.
type Filter struct {
	// Extensions keeps only files with one of these suffixes (".go", ".php").
	// Empty keeps every regular file.
	Extensions []string
	// ExcludeDirs names directories that are not descended into, at any depth.
	ExcludeDirs []string
	// IncludeExcluded disables ExcludeDirs.
	IncludeExcluded bool
}

func (f Filter) key() string {
	ext := slices.Clone(f.Extensions)
	slices.Sort(ext)
	dirs := slices.Clone(f.ExcludeDirs)
	slices.Sort(dirs)
	return fmt.Sprintf("ext=%s|skip=%s|all=%t", strings.Join(ext, ","), strings.Join(dirs, ","), f.IncludeExcluded)
}

func (f Filter) keepFile(name string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range f.Extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (f Filter) skipDir(name string) bool {
	if f.IncludeExcluded {
		return false
	}
	return slices.Contains(f.ExcludeDirs, name)
}

// Walker enumerates files under a root. Results are cached per (root, filter)
// and concurrent identical walks are collapsed into one.
//
// A nil *Walker is valid and walks without caching.
type Walker struct {
	cache *Cache
	group Group
}

func NewWalker() *Walker {
	return &Walker{cache: NewCache()}
}

// Reset forgets cached walks so the next call observes the current tree.
func (w *Walker) Reset() {
	if w == nil || w.cache == nil {
		return
	}
	w.cache.Reset()
}

// Files returns the regular files under root that pass filter, in lexical
// order. A missing root returns an error wrapping fs.ErrNotExist.
func (w *Walker) Files(ctx context.Context, root string, filter Filter) ([]string, error) {
	if ctx == nil {
		return nil, fmt.Errorf("Files: nil context")
	}
	if root == "" {
		return nil, fmt.Errorf("Files: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("Files: resolve %s: %w", root, err)
	}

	if w == nil || w.cache == nil {
		return walk(ctx, abs, filter)
	}

	key := abs + "|" + filter.key()
	if files, ok := w.cache.Get(key); ok {
		return slices.Clone(files), nil
	}

	files, err, _ := w.group.Do(key, func() ([]string, error) {
		return walk(ctx, abs, filter)
	})
	if err != nil {
		return nil, err
	}
	w.cache.Set(key, files)
	return slices.Clone(files), nil
}

func walk(ctx context.Context, root string, filter Filter) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if !info.IsDir() {
		if filter.keepFile(info.Name()) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped; the root itself was already stat'ed.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && filter.skipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if filter.keepFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
