package filter

import "strings"

// NoTags is stored when a video carries no tags.
const NoTags = "[none]"

var stripper = strings.NewReplacer("\n", "", "\r", "", `"`, "")

// Sanitize removes line breaks and double quotes that break CSV-style exports.
func Sanitize(s string) string {
	return strings.TrimSpace(stripper.Replace(s))
}

// JoinTags flattens tags into the pipe-separated form kept in the catalog.
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return NoTags
	}
	return strings.Join(tags, "|")
}
