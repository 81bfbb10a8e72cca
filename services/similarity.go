package services

import (
	"regexp"
	"sonata/types"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Acceptance thresholds for catalog matches. They are deliberately low and
// asymmetric: catalog titles and artist billing often carry extra tokens
// (remix tags, featured artists) that must not cause false rejection.
const (
	titleSimilarityThreshold  = 0.4
	artistSimilarityThreshold = 0.3
)

var (
	parenthetical = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)
	featCredit    = regexp.MustCompile(`(?i)\s+(feat\.?|ft\.?|featuring)\s+.*$`)
)

// stripDecorations drops parenthesized segments and featured-artist credits.
// Catalog titles carry these while search keys usually do not, and they must
// not count as distance.
func stripDecorations(s string) string {
	s = parenthetical.ReplaceAllString(s, "")
	s = featCredit.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Similarity returns a normalized edit-distance ratio in [0,1]:
// 1.0 for identical strings, 0.0 for completely different ones.
// Comparison is case-insensitive and ignores decorations on either side.
func Similarity(a, b string) float64 {
	a = stripDecorations(strings.ToLower(strings.TrimSpace(a)))
	b = stripDecorations(strings.ToLower(strings.TrimSpace(b)))

	if a == b {
		return 1.0
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// AcceptMatch decides whether a catalog record is close enough to the
// search key. The title must clear its threshold; the artist only matters
// when the caller supplied one.
func AcceptMatch(searchTitle, searchArtist string, record *types.MetadataRecord) bool {
	if record == nil {
		return false
	}

	if Similarity(searchTitle, record.Title) <= titleSimilarityThreshold {
		return false
	}

	if strings.TrimSpace(searchArtist) == "" {
		return true
	}
	return Similarity(searchArtist, record.Artist) > artistSimilarityThreshold
}
