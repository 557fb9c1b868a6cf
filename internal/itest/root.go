//go:build integration

package itest

import (
	"errors"
	"os"
	"path/filepath"
)

// findRepoRoot walks up from the working directory to the directory holding
// go.mod. CLIPFORGE_REPO_ROOT overrides the search.
func findRepoRoot() (string, error) {
	if dir := os.Getenv("CLIPFORGE_REPO_ROOT"); dir != "" {
		return filepath.Abs(dir)
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not locate go.mod above the working directory")
		}
		dir = parent
	}
}
