package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)
	rePunct  = regexp.MustCompile(`["'` + "`" + `«»،,;:!?()\[\]{}]`)
)

// NormalizeName produces the fallback identity key for items that carry no
// resolved variant id: lower-cased, punctuation stripped, spaces collapsed.
func NormalizeName(input string) string {
	s := strings.ToLower(input)
	s = rePunct.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CollapseSpaces trims and squeezes runs of whitespace to single spaces.
func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// SanitizeFilename makes a message id or order id safe for use in filenames.
func SanitizeFilename(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
