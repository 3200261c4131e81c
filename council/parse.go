package council

import (
	"regexp"
	"strings"
)

// rankingMarker is the literal section header rankers are instructed to
// emit. Matching is case- and spacing-exact.
const rankingMarker = "FINAL RANKING:"

var (
	// numberedPattern matches one numbered ranking entry: integer, period,
	// optional whitespace, then a label token.
	numberedPattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	// labelPattern matches a bare label token. Case-sensitive: "response a"
	// and multi-letter suffixes do not match.
	labelPattern = regexp.MustCompile(`Response [A-Z]`)
)

// ParseRanking extracts an ordered list of response labels from a model's
// free-text ranking output. Precedence: numbered entries after the marker,
// then bare labels after the marker, then bare labels anywhere in the
// text. Duplicates are preserved and unrecognized text is skipped; the
// result is empty (never nil) when nothing matches.
//
// Deliberately tolerant rather than strict: downstream aggregation depends
// on these exact fallbacks, so do not tighten them.
func ParseRanking(text string) []string {
	if strings.Contains(text, rankingMarker) {
		// The section runs from the first marker to the next marker
		// occurrence, if any. A model that echoes the marker twice only
		// gets the first section considered.
		section := strings.Split(text, rankingMarker)[1]

		numbered := numberedPattern.FindAllString(section, -1)
		if len(numbered) > 0 {
			labels := make([]string, len(numbered))
			for i, m := range numbered {
				labels[i] = labelPattern.FindString(m)
			}
			return labels
		}

		return allLabels(section)
	}

	return allLabels(text)
}

func allLabels(text string) []string {
	labels := labelPattern.FindAllString(text, -1)
	if labels == nil {
		return []string{}
	}
	return labels
}
