package richtext

import "regexp"

var tagPattern = regexp.MustCompile(`<.*?>`)

// Strip removes every HTML tag, leaving the untagged text untouched.
// No entity decoding and no table handling; Convert is the variant that
// formats instead of discarding.
func Strip(raw string) string {
	return tagPattern.ReplaceAllString(raw, "")
}
