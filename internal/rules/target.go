package rules

import (
	"path/filepath"
	"time"

	"secaudit/internal/fsx"
	"secaudit/internal/settings"
)

// Target carries everything a rule may read during one audit run.
type Target struct {
	// Root is the application directory under audit.
	Root string
	// Environment is the deployment stage label ("production", "local").
	Environment string
	Settings    settings.Settings
	// Now is the reference time for age calculations.
	Now time.Time
	// Files is shared by every rule in the run. May be nil.
	Files *fsx.Walker
}

// Path resolves p against Root unless it is already absolute.
func (t *Target) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(t.Root, p)
}

// Clock returns Now, or the wall clock when Now is unset.
func (t *Target) Clock() time.Time {
	if t.Now.IsZero() {
		return time.Now()
	}
	return t.Now
}
