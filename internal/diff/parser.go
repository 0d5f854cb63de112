package diff

import (
	"regexp"
	"strconv"
	"strings"
)

// Parser turns a unified diff between the two revisions of a file into
// conflict hunks. The "old" side of the diff must be theirs and the "new"
// side yours, as produced by `git diff --no-index theirs yours`.
//
// Each run of -/+ lines between context lines becomes one hunk, so a single
// @@ section can produce several hunks. The parser doesn't compute diffs; it
// only reads one that a diff provider already produced.
type Parser struct{}

// NewParser creates a new diff parser.
func NewParser() *Parser {
	return &Parser{}
}

// sectionHeaderRegex matches unified diff section headers like:
// @@ -1,5 +1,7 @@
// @@ -0,0 +1,10 @@ (everything added)
var sectionHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// pendingHunk accumulates one run of changed lines.
type pendingHunk struct {
	theirsStart int
	yoursStart  int
	theirs      []string
	yours       []string
}

func (p *pendingHunk) empty() bool {
	return len(p.theirs) == 0 && len(p.yours) == 0
}

// ParseHunks parses unified diff output into a ConflictFile for path.
// Lines outside @@ sections (file headers, index lines) are ignored.
func (p *Parser) ParseHunks(path, theirs, yours, unified string) (*ConflictFile, error) {
	var hunks []Hunk
	var cur pendingHunk
	var theirsLine, yoursLine int
	inSection := false

	flush := func() {
		if cur.empty() {
			return
		}
		h := Hunk{
			Theirs:      LineRange{Start: cur.theirsStart, End: cur.theirsStart + len(cur.theirs) - 1},
			Yours:       LineRange{Start: cur.yoursStart, End: cur.yoursStart + len(cur.yours) - 1},
			TheirsLines: cur.theirs,
			YoursLines:  cur.yours,
		}
		h.ID = HunkID(path, h.Theirs, h.Yours, h.TheirsLines, h.YoursLines)
		hunks = append(hunks, h)
		cur = pendingHunk{}
	}

	begin := func() {
		if cur.empty() {
			cur.theirsStart = theirsLine
			cur.yoursStart = yoursLine
		}
	}

	if unified != "" {
		for _, line := range strings.Split(unified, "\n") {
			if strings.HasPrefix(line, "diff --git ") {
				flush()
				inSection = false
				continue
			}

			if matches := sectionHeaderRegex.FindStringSubmatch(line); matches != nil {
				flush()
				theirsLine = sectionStart(matches[1], matches[2])
				yoursLine = sectionStart(matches[3], matches[4])
				inSection = true
				continue
			}

			if !inSection || len(line) == 0 {
				continue
			}

			switch line[0] {
			case ' ':
				flush()
				theirsLine++
				yoursLine++
			case '-':
				begin()
				cur.theirs = append(cur.theirs, line[1:])
				theirsLine++
			case '+':
				begin()
				cur.yours = append(cur.yours, line[1:])
				yoursLine++
			case '\\':
				// "\ No newline at end of file"
			default:
				flush()
				inSection = false
			}
		}
	}
	flush()

	return NewConflictFile(path, theirs, yours, hunks)
}

// sectionStart returns the first line number a section's body refers to.
// A zero count means the start names the line *before* the section, so the
// body begins one line later.
func sectionStart(start, count string) int {
	n, _ := strconv.Atoi(start)
	if count != "" {
		if c, _ := strconv.Atoi(count); c == 0 {
			return n + 1
		}
	}
	return n
}
