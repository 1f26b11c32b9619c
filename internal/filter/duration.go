// Package filter holds the pure helpers used to screen and clean video metadata.
package filter

import (
	"regexp"
	"strconv"
)

var durationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration converts an ISO-8601 duration such as "PT1H2M3S" into seconds.
// Missing components count as zero. Anything it cannot read yields 0, which
// callers treat as too short to keep.
func ParseDuration(encoded string) int {
	m := durationPattern.FindStringSubmatch(encoded)
	if m == nil {
		return 0
	}

	weights := [...]int{86400, 3600, 60, 1}
	total := 0
	for i, w := range weights {
		part := m[i+1]
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}
		total += n * w
	}
	return total
}
