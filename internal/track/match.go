package track

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Normalize prepares a title or artist string for comparison between
// services: lower-cases, strips ASCII and smart-quote apostrophes, and
// spells out the ampersand conjunction. Idempotent.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "’", "")
	s = strings.ReplaceAll(s, "&", "and")
	return s
}

// TitlesMatch reports whether two titles refer to the same song after
// normalization. Containment in either direction counts as a match so that
// suffixes like "(Remastered)" on one side do not break the comparison.
func TitlesMatch(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// SameTrack reports whether two tracks match on normalized title and
// artist. A title match is required before the artist comparison is
// attempted; both use the containment rule from [TitlesMatch].
func SameTrack(x, y Track) bool {
	if !TitlesMatch(x.Title, y.Title) {
		return false
	}
	return TitlesMatch(x.Artist, y.Artist)
}

// Similarity returns the Jaro-Winkler similarity of two tracks' normalized
// title+artist strings. Used only to annotate near-miss log lines; match
// decisions are made by [SameTrack] alone.
func Similarity(x, y Track) float64 {
	return strutil.Similarity(x.Key(), y.Key(), metrics.NewJaroWinkler())
}

// Match scans candidates for one matching t under [SameTrack] and returns
// its index, or -1.
//
// The second return value reports a near miss: some candidate matched on
// title but none matched on artist as well. Near misses usually indicate a
// metadata quality problem worth surfacing, so callers log them instead of
// dropping them silently.
func Match(t Track, candidates []Track) (int, bool) {
	titleMatched := false
	for i := range candidates {
		if !TitlesMatch(t.Title, candidates[i].Title) {
			continue
		}
		titleMatched = true
		if TitlesMatch(t.Artist, candidates[i].Artist) {
			return i, false
		}
	}
	return -1, titleMatched
}
