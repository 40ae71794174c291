package leo

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NormalizePath replaces backslashes with forward slashes. The server
// stores and compares paths in forward-slash form regardless of the
// client's platform. Idempotent.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// RelPath returns target relative to root, normalized to forward slashes.
func RelPath(root, target string) (string, error) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", fmt.Errorf("computing path of %s relative to %s: %w", target, root, err)
	}
	return NormalizePath(rel), nil
}
