package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"eventsync/internal/config"
	"eventsync/internal/deps"
	"eventsync/internal/overrides"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatasetLayout verifies that root looks like a BIDS dataset with at
// least one subject directory.
func CheckDatasetLayout(root string) Result {
	const name = "Dataset layout"

	matches, err := filepath.Glob(filepath.Join(root, "sub-*"))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("glob: %v", err)}
	}
	subjects := 0
	for _, match := range matches {
		if info, statErr := os.Stat(match); statErr == nil && info.IsDir() {
			subjects++
		}
	}
	if subjects == 0 {
		return Result{Name: name, Detail: "no sub-* directories"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d subject(s)", subjects)}
}

// CheckOverrides verifies that the overrides file parses.
func CheckOverrides(path string) Result {
	const name = "Overrides file"

	set, err := overrides.Load(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d pairing(s))", path, set.Len())}
}

// CheckSystemDeps evaluates the external tools needed by the configured
// dataset manager. Both the run command and the CLI status command use
// this to avoid duplicating the requirements list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	if cfg.Dataset.Manager != config.ManagerDatalad {
		return nil
	}
	return deps.CheckBinaries(deps.DataladRequirements(cfg.Dataset.DataladBinary))
}
