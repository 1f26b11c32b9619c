package filter

import (
	"regexp"
	"unicode/utf8"
)

const minTitleLength = 3

var (
	latinCharset = regexp.MustCompile(`^[a-zA-Z0-9\s\-'".,!?()&|]+$`)

	// articles, common prepositions, common auxiliaries
	englishTokens = regexp.MustCompile(`(?i)\b(?:the|a|an|in|on|at|by|for|with|to|is|are|was|were|will|can)\b`)
)

// IsTargetLanguage reports whether a title looks English. It is a cheap
// recall-oriented heuristic used to bias the candidate pool, not a classifier.
func IsTargetLanguage(title string) bool {
	if utf8.RuneCountInString(title) < minTitleLength {
		return false
	}
	if !latinCharset.MatchString(title) {
		return false
	}
	return englishTokens.MatchString(title)
}
