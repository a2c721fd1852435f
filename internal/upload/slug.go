package upload

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	nonWord    = regexp.MustCompile(`[^\w\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Slugify derives a URL-safe slug from a game title: lowercase, non-word
// characters stripped, runs of whitespace collapsed to hyphens, truncated to
// 60 characters. An empty result falls back to a random identifier.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonWord.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = s[:60]
		s = strings.Trim(s, "-")
	}
	if s == "" {
		s = uuid.NewString()[:8]
	}
	return s
}

// NewAssetDir returns the per-game asset directory name, "{slug}-{suffix}".
// The random suffix keeps same-titled games from colliding on disk.
func NewAssetDir(slug string) string {
	return slug + "-" + uuid.NewString()[:8]
}
