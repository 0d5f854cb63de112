package diff

import "strings"

// SplitLines splits content on "\n". Empty content is one empty line, and a
// trailing newline produces a trailing empty line, so JoinLines(SplitLines(s)) == s.
func SplitLines(content string) []string {
	return strings.Split(content, "\n")
}

// JoinLines joins lines with "\n".
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// SplitText splits user-supplied replacement text into lines.
// Unlike SplitLines, empty text yields no lines at all so that an empty
// custom resolution deletes its region instead of leaving a blank line.
func SplitText(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
