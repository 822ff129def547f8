package utils

import (
	"math"
	"strings"
)

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}

// ContainsString checks if a string slice contains a specific string.
func ContainsString(slice []string, item string) bool {
	for _, a := range slice {
		if a == item {
			return true
		}
	}
	return false
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// SplitTags flattens tag values that may arrive comma-separated (HTML forms)
// or as separate entries (JSON), trimming blanks and dropping duplicates.
func SplitTags(values []string) []string {
	tags := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || ContainsString(tags, part) {
				continue
			}
			tags = append(tags, part)
		}
	}
	return tags
}
