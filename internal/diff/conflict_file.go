package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"

	apperrors "github.com/veroide/mergehost/internal/errors"
)

// ConflictFile is one file under merge. It is immutable once built: if
// either branch moves, a new ConflictFile with new hunk ids must be fetched.
type ConflictFile struct {
	Path          string
	TheirsContent string
	YoursContent  string

	hunks []Hunk
	index map[string]int
}

// NewConflictFile validates the hunks and returns a file with its hunks
// ordered by ascending Yours.Start.
//
// Validation:
//   - every hunk needs an id, unique within the file
//   - both ranges must be well formed and fit their revision
//   - len(YoursLines) must match the Yours range, since yours is the base
//   - Yours ranges must not overlap and must start on distinct lines
func NewConflictFile(path, theirs, yours string, hunks []Hunk) (*ConflictFile, error) {
	sorted := make([]Hunk, len(hunks))
	for i, h := range hunks {
		sorted[i] = h.Clone()
	}
	slices.SortStableFunc(sorted, func(a, b Hunk) int {
		return a.Yours.Start - b.Yours.Start
	})

	theirsLen := len(SplitLines(theirs))
	yoursLen := len(SplitLines(yours))

	index := make(map[string]int, len(sorted))
	for i, h := range sorted {
		if h.ID == "" {
			return nil, apperrors.InvalidProviderInput("hunk without id in " + path)
		}
		if _, dup := index[h.ID]; dup {
			return nil, apperrors.DuplicateHunk(path, h.ID)
		}
		index[h.ID] = i

		if !h.Yours.WellFormed() {
			return nil, apperrors.MalformedHunkRange(path, h.ID, "yours range "+h.Yours.String()+" ends before it starts")
		}
		if !h.Yours.Within(yoursLen) {
			return nil, apperrors.MalformedHunkRange(path, h.ID, "yours range "+h.Yours.String()+" is outside the file")
		}
		if !h.Theirs.Within(theirsLen) {
			return nil, apperrors.MalformedHunkRange(path, h.ID, "theirs range "+h.Theirs.String()+" is outside the file")
		}
		if len(h.YoursLines) != h.Yours.Len() {
			return nil, apperrors.MalformedHunkRange(path, h.ID, "yours lines don't match range "+h.Yours.String())
		}

		if i > 0 {
			prev := sorted[i-1]
			if h.Yours.Start <= prev.Yours.End || h.Yours.Start == prev.Yours.Start {
				return nil, apperrors.OverlappingHunks(path, prev.ID, h.ID)
			}
		}
	}

	return &ConflictFile{
		Path:          path,
		TheirsContent: theirs,
		YoursContent:  yours,
		hunks:         sorted,
		index:         index,
	}, nil
}

// Hunks returns the hunks in ascending Yours.Start order.
// The returned slice is a copy.
func (f *ConflictFile) Hunks() []Hunk {
	out := make([]Hunk, len(f.hunks))
	for i, h := range f.hunks {
		out[i] = h.Clone()
	}
	return out
}

// HunkCount returns the number of hunks in the file.
func (f *ConflictFile) HunkCount() int {
	return len(f.hunks)
}

// Hunk looks up a hunk by id.
func (f *ConflictFile) Hunk(id string) (Hunk, bool) {
	i, ok := f.index[id]
	if !ok {
		return Hunk{}, false
	}
	return f.hunks[i], true
}

// HasHunk reports whether id belongs to this file.
func (f *ConflictFile) HasHunk(id string) bool {
	_, ok := f.index[id]
	return ok
}

// Position returns the order of a hunk within the file, or -1.
func (f *ConflictFile) Position(id string) int {
	i, ok := f.index[id]
	if !ok {
		return -1
	}
	return i
}

// Fingerprint identifies the pair of revisions this file was built from.
// A draft whose fingerprint differs from a freshly fetched file is stale.
func (f *ConflictFile) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(f.Path))
	h.Write([]byte{0})
	h.Write([]byte(f.TheirsContent))
	h.Write([]byte{0})
	h.Write([]byte(f.YoursContent))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
