package download

import (
	"path/filepath"
	"strings"
)

// FileExtension returns "flac" for lossless labels and "mp3" otherwise
func FileExtension(quality string) string {
	q := strings.ToLower(quality)
	if strings.Contains(q, "flac") || strings.Contains(q, "lossless") {
		return "flac"
	}
	return "mp3"
}

// BuildPath returns {dir}/{name}-{singer}[-{quality}].{ext}
func BuildPath(dir string, track TrackRef, quality string, withSuffix bool) string {
	parts := []string{sanitizeFilename(track.Name)}
	if singer := strings.TrimSpace(track.Singer); singer != "" {
		parts = append(parts, sanitizeFilename(singer))
	}
	if withSuffix && quality != "" {
		parts = append(parts, sanitizeFilename(quality))
	}
	return filepath.Join(dir, strings.Join(parts, "-")+"."+FileExtension(quality))
}

// sanitizeFilename replaces characters that are invalid in filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"\x00", "",
		"\n", " ",
		"\r", " ",
		"\t", " ",
	)

	sanitized := replacer.Replace(name)
	sanitized = strings.TrimSpace(sanitized)
	sanitized = strings.Trim(sanitized, ".")
	if sanitized == "" {
		sanitized = "unknown"
	}
	return sanitized
}
