package cli

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"secaudit/internal/config"
	"secaudit/internal/engine"
	"secaudit/internal/rules"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 300 * time.Millisecond

// watchSkipDirs are never watched; they churn on installs and hold no
// application code of interest between runs.
var watchSkipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
}

// watch runs the audit once, then again whenever a watched file changes,
// until ctx is done. It returns the exit code of the last run.
func watch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) int {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("cannot start file watcher", "err", err)
		return engine.ExitFatal
	}
	defer w.Close()

	addWatchTargets(w, cfg, logger)
	ignored := ignoredPaths(cfg)
	code := engine.Run(ctx, cfg, rules.Default(), logger)
	logger.Info("watching for changes", "root", cfg.Audit.Root)

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return code
		case ev, ok := <-w.Events:
			if !ok {
				return code
			}
			if !triggersRerun(ev, ignored, cfg.EnvFilePath()) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					addTree(w, ev.Name, logger)
				}
			}
			logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return code
			}
			logger.Warn("file watcher error", "err", err)
		case <-timer.C:
			next, err := loadConfig(cmd)
			if err == nil {
				err = next.Validate()
			}
			if err != nil {
				logger.Error("config reload failed; keeping previous config", "err", err)
			} else {
				next.Runtime.Watch = true
				cfg = next
				addWatchTargets(w, cfg, logger)
				ignored = ignoredPaths(cfg)
			}
			code = engine.Run(ctx, cfg, rules.Default(), logger)
		}
	}
}

// watchTargets lists the directories to watch: every directory under the
// audit root except watchSkipDirs, plus the directories holding the config
// file and the dotenv file. Directories are watched rather than files so
// that editors replacing a file on save are still seen.
func watchTargets(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(dir string) {
		if dir == "" || seen[dir] {
			return
		}
		seen[dir] = true
		out = append(out, dir)
	}

	_ = filepath.WalkDir(cfg.Audit.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != cfg.Audit.Root && watchSkipDirs[d.Name()] {
			return filepath.SkipDir
		}
		add(filepath.Clean(path))
		return nil
	})
	if cfg.Source != "" {
		add(filepath.Clean(filepath.Dir(cfg.Source)))
	}
	if envFile := cfg.EnvFilePath(); envFile != "" {
		add(filepath.Clean(filepath.Dir(envFile)))
	}
	return out
}

func addWatchTargets(w *fsnotify.Watcher, cfg *config.Config, logger *slog.Logger) {
	for _, dir := range watchTargets(cfg) {
		if err := w.Add(dir); err != nil {
			logger.Debug("cannot watch directory", "path", dir, "err", err)
		}
	}
}

func addTree(w *fsnotify.Watcher, root string, logger *slog.Logger) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if watchSkipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			logger.Debug("cannot watch directory", "path", path, "err", err)
		}
		return nil
	})
}

// ignoredPaths holds the files the audit itself writes, so that writing
// them does not schedule another run.
func ignoredPaths(cfg *config.Config) map[string]bool {
	out := make(map[string]bool)
	for _, p := range []string{cfg.Output.Out, cfg.Output.Report} {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			out[abs] = true
		}
	}
	return out
}

// triggersRerun reports whether ev should schedule a run. Permission-only
// changes count for the dotenv file alone.
func triggersRerun(ev fsnotify.Event, ignored map[string]bool, envFile string) bool {
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		abs = ev.Name
	}
	if ignored[abs] {
		return false
	}
	if ev.Op == fsnotify.Chmod {
		if envFile == "" {
			return false
		}
		envAbs, err := filepath.Abs(envFile)
		return err == nil && envAbs == abs
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
