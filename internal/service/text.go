package service

import (
	"regexp"
	"strings"
	"unicode"
)

// FirstNonEmptyLine returns the first line of message that contains
// something other than whitespace, untrimmed. Line breaks are any run of
// '\r' and '\n'. A message without such a line yields "".
func FirstNonEmptyLine(message string) string {
	lines := strings.FieldsFunc(message, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

// ExtractReviewIDs returns the distinct review ids of the form KEY-<digits>
// mentioned in message, in order of first appearance.
func ExtractReviewIDs(message, projectKey string) []string {
	if message == "" || projectKey == "" {
		return nil
	}

	re := regexp.MustCompile(regexp.QuoteMeta(projectKey) + `-\d+`)
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, id := range re.FindAllString(message, -1) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// DerivedReviewKey turns a branch name into the search key reviews for that
// branch are tagged with: letters and digits only, suffixed with "-1".
func DerivedReviewKey(branch string) string {
	var b strings.Builder
	for _, r := range branch {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	b.WriteString("-1")
	return b.String()
}
