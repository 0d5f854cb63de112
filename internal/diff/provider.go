package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/veroide/mergehost/internal/errors"
)

// ProviderHunk is the wire shape of one hunk as returned by the diff provider.
type ProviderHunk struct {
	ID          string   `json:"id,omitempty"`
	TheirsStart int      `json:"theirsStart"`
	TheirsEnd   int      `json:"theirsEnd"`
	TheirsLines []string `json:"theirsLines"`
	YoursStart  int      `json:"yoursStart"`
	YoursEnd    int      `json:"yoursEnd"`
	YoursLines  []string `json:"yoursLines"`
}

// ProviderFile is the wire shape of one conflicting file.
type ProviderFile struct {
	FilePath      string         `json:"filePath"`
	TheirsContent string         `json:"theirsContent"`
	YoursContent  string         `json:"yoursContent"`
	Hunks         []ProviderHunk `json:"hunks"`
}

// ToConflictFile validates the payload and builds a ConflictFile.
// Hunks without an id get one from HunkID.
func (p ProviderFile) ToConflictFile() (*ConflictFile, error) {
	if p.FilePath == "" {
		return nil, apperrors.InvalidProviderInput("file without filePath")
	}
	hunks := make([]Hunk, len(p.Hunks))
	for i, ph := range p.Hunks {
		h := Hunk{
			ID:          ph.ID,
			Theirs:      LineRange{Start: ph.TheirsStart, End: ph.TheirsEnd},
			Yours:       LineRange{Start: ph.YoursStart, End: ph.YoursEnd},
			TheirsLines: ph.TheirsLines,
			YoursLines:  ph.YoursLines,
		}
		if h.ID == "" {
			h.ID = HunkID(p.FilePath, h.Theirs, h.Yours, h.TheirsLines, h.YoursLines)
		}
		hunks[i] = h
	}
	return NewConflictFile(p.FilePath, p.TheirsContent, p.YoursContent, hunks)
}

// FromConflictFile converts a ConflictFile back into the provider wire shape.
func FromConflictFile(f *ConflictFile) ProviderFile {
	out := ProviderFile{
		FilePath:      f.Path,
		TheirsContent: f.TheirsContent,
		YoursContent:  f.YoursContent,
		Hunks:         make([]ProviderHunk, 0, len(f.hunks)),
	}
	for _, h := range f.hunks {
		out.Hunks = append(out.Hunks, ProviderHunk{
			ID:          h.ID,
			TheirsStart: h.Theirs.Start,
			TheirsEnd:   h.Theirs.End,
			TheirsLines: append([]string(nil), h.TheirsLines...),
			YoursStart:  h.Yours.Start,
			YoursEnd:    h.Yours.End,
			YoursLines:  append([]string(nil), h.YoursLines...),
		})
	}
	return out
}

// DecodeProviderFiles reads provider output. Both a bare JSON array of files
// and an object of the form {"files": [...]} are accepted.
func DecodeProviderFiles(r io.Reader) ([]ProviderFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read conflict payload: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, apperrors.InvalidProviderInput("empty payload")
	}

	var files []ProviderFile
	if data[0] == '[' {
		if err := json.Unmarshal(data, &files); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeProviderInvalidInput, "decode conflict payload", err)
		}
		return files, nil
	}

	var wrapped struct {
		Files []ProviderFile `json:"files"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProviderInvalidInput, "decode conflict payload", err)
	}
	return wrapped.Files, nil
}

// BuildConflictFiles converts provider files, stopping at the first invalid one.
func BuildConflictFiles(files []ProviderFile) ([]*ConflictFile, error) {
	out := make([]*ConflictFile, 0, len(files))
	for _, pf := range files {
		cf, err := pf.ToConflictFile()
		if err != nil {
			return nil, err
		}
		out = append(out, cf)
	}
	return out, nil
}
