package services

import (
	"regexp"
	"strings"
)

const maxFilenameLength = 200

var (
	illegalFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	repeatedWhitespace   = regexp.MustCompile(`\s+`)
)

// SanitizeFilename strips filesystem-illegal characters and control
// characters, collapses whitespace and truncates to a safe length.
// Returns "download" when nothing usable remains.
func SanitizeFilename(name string) string {
	cleaned := illegalFilenameChars.ReplaceAllString(name, "")
	cleaned = repeatedWhitespace.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) > maxFilenameLength {
		cleaned = strings.TrimSpace(cleaned[:maxFilenameLength])
	}

	if cleaned == "" {
		return "download"
	}
	return cleaned
}

// ResultFilename derives the delivered filename from artist and title,
// "Artist - Title.ext". Either part may be empty.
func ResultFilename(artist, title, ext string) string {
	var parts []string
	if strings.TrimSpace(artist) != "" {
		parts = append(parts, SanitizeFilename(artist))
	}
	if strings.TrimSpace(title) != "" {
		parts = append(parts, SanitizeFilename(title))
	}

	base := strings.Join(parts, " - ")
	if base == "" {
		base = "download"
	}

	if !strings.HasPrefix(ext, ".") && ext != "" {
		ext = "." + ext
	}
	return base + ext
}
