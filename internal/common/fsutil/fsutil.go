// Package fsutil holds the filesystem helpers shared by config loading
// and state-directory management.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome resolves a leading "~" or "~/" against the current user's
// home directory. Any other path passes through untouched.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// EnsureDir expands dir and creates it with its parents if missing,
// returning the expanded path.
func EnsureDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("empty dir")
	}
	abs, err := ExpandHome(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return abs, nil
}
