// Package diff models the conflicting regions reported by the diff provider.
// A ConflictFile holds both revisions of one file plus its ordered hunks;
// hunk ranges always refer to the unmodified revisions and are never renumbered.
package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// LineRange is a 1-based inclusive line range. An insertion point before
// line k is written as {k, k-1}: it covers no lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of lines covered by the range.
func (r LineRange) Len() int {
	return r.End - r.Start + 1
}

// IsInsertion reports whether the range is an insertion point.
func (r LineRange) IsInsertion() bool {
	return r.End == r.Start-1
}

// WellFormed reports whether the range starts at line 1 or later and does
// not end before its own insertion point.
func (r LineRange) WellFormed() bool {
	return r.Start >= 1 && r.End >= r.Start-1
}

// Within reports whether the range fits a revision with n lines.
func (r LineRange) Within(n int) bool {
	return r.WellFormed() && r.End <= n && r.Start <= n+1
}

func (r LineRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Hunk is one contiguous conflicting region in both revisions.
// Two hunks are the same hunk when their IDs match.
type Hunk struct {
	// ID is stable for the same logical region and opaque to the engine.
	ID string `json:"id"`

	// Theirs is the region in the source-branch revision.
	Theirs LineRange `json:"theirs"`

	// Yours is the region in the sandbox revision. Reconstruction splices here.
	Yours LineRange `json:"yours"`

	TheirsLines []string `json:"theirs_lines"`
	YoursLines  []string `json:"yours_lines"`
}

// Equal compares hunks by identity.
func (h Hunk) Equal(other Hunk) bool {
	return h.ID == other.ID
}

// Clone returns a deep copy so callers can't alias the line slices.
func (h Hunk) Clone() Hunk {
	c := h
	c.TheirsLines = append([]string(nil), h.TheirsLines...)
	c.YoursLines = append([]string(nil), h.YoursLines...)
	return c
}

// HunkID derives a deterministic id from the file path, both ranges and both
// line sets. The same region reported twice gets the same id; any change to
// either side produces a new one. Uses the first 12 hex chars of SHA256.
func HunkID(file string, theirs, yours LineRange, theirsLines, yoursLines []string) string {
	data := fmt.Sprintf("%s:%s:%s:%s\x00%s", file, theirs, yours,
		strings.Join(theirsLines, "\n"), strings.Join(yoursLines, "\n"))
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:12]
}
