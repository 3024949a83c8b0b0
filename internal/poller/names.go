package poller

import (
	"regexp"
	"strings"
)

// Tried in order; the first match wins.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)від\s+([\p{Cyrillic}\w\s]+)`),
	regexp.MustCompile(`(?i)from\s+([A-Za-z\w\s]+)`),
	regexp.MustCompile(`([\p{Cyrillic}\w\s]{2,})\s*-`),
	regexp.MustCompile(`^([\p{Cyrillic}\w\s]{2,})`),
}

// ExtractName guesses a donor name from a free-text statement description and
// returns fallback when nothing usable is found.
func ExtractName(description, fallback string) string {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	return fallback
}
