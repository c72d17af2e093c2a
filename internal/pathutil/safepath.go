// Package pathutil validates user-supplied storage paths.
//
// The blob store factory accepts data-directory and database paths from
// environment variables; this package makes sure those paths cannot escape
// the workspace directory, including through symlinks.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveSafePath resolves userPath relative to baseDir and verifies the
// result stays inside baseDir after symlink resolution.
//
// Relative paths are joined with baseDir; absolute paths are accepted but
// still checked for containment. The target file does not have to exist yet:
// the nearest existing ancestor is resolved and the remaining components are
// rejoined.
//
// Returns an error if:
//   - userPath is empty or whitespace-only
//   - userPath contains a null byte
//   - the resolved path escapes baseDir, including via symlinks
//
// Example:
//
//	path, err := ResolveSafePath("/home/user/workspace", ".taskstore/tasks.db")
//	// path is guaranteed to be within /home/user/workspace
func ResolveSafePath(baseDir, userPath string) (string, error) {
	if strings.TrimSpace(userPath) == "" {
		return "", fmt.Errorf("path is empty or whitespace-only")
	}
	if strings.Contains(userPath, "\x00") {
		return "", fmt.Errorf("path contains null byte")
	}

	candidate := userPath
	if !filepath.IsAbs(userPath) {
		candidate = filepath.Join(baseDir, userPath)
	}
	candidate = filepath.Clean(candidate)

	resolved, err := resolveSymlinks(candidate)
	if err != nil {
		return "", err
	}

	baseResolved, err := filepath.EvalSymlinks(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}

	rel, err := filepath.Rel(baseResolved, resolved)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", userPath)
	}

	return resolved, nil
}

// resolveSymlinks evaluates symlinks for candidate, tolerating the case
// where the path (or several trailing components) does not exist yet.
func resolveSymlinks(candidate string) (string, error) {
	resolved, err := filepath.EvalSymlinks(candidate)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	// Walk up to the nearest existing ancestor, resolve it, then rejoin
	// the components that don't exist yet.
	current := filepath.Clean(candidate)
	var pending []string
	for {
		if _, statErr := os.Stat(current); statErr == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				return "", fmt.Errorf("failed to resolve existing ancestor: %w", err)
			}
			for i := len(pending) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, pending[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor directory found for %s", candidate)
		}
		pending = append(pending, filepath.Base(current))
		current = parent
	}
}
