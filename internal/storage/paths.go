package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SanitizeInput strips null bytes and control characters, keeping newline and tab
func SanitizeInput(input string) string {
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ContainedPath checks that path resolves to a location inside baseDir
func ContainedPath(baseDir, path string) error {
	cleanBase := filepath.Clean(baseDir)
	rel, err := filepath.Rel(cleanBase, filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path %s is not under %s: %w", path, baseDir, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal attempt detected: %s", path)
	}
	return nil
}
