package resolve

import (
	"maps"

	"github.com/veroide/mergehost/internal/diff"
	apperrors "github.com/veroide/mergehost/internal/errors"
)

// FileResolution is the working state for one ConflictFile.
//
// The hunk-level decisions are kept even while a full-content override is
// active, so ClearOverride returns to exactly the choices made before it.
// Every mutating method computes the new content first and only commits the
// change when that succeeds; a failed call leaves the state untouched.
type FileResolution struct {
	file *diff.ConflictFile
	opts Options

	decisions map[string]HunkResolution
	override  *FullOverride
	content   string
}

// NewFileResolution starts a file with no decisions. Its content is the
// yours revision unchanged.
func NewFileResolution(f *diff.ConflictFile, opts Options) *FileResolution {
	return &FileResolution{
		file:      f,
		opts:      opts,
		decisions: make(map[string]HunkResolution),
		content:   f.YoursContent,
	}
}

// File returns the conflict file this resolution belongs to.
func (r *FileResolution) File() *diff.ConflictFile {
	return r.file
}

// Mode returns the current mode as a tagged value.
func (r *FileResolution) Mode() Mode {
	if r.override != nil {
		return *r.override
	}
	return HunkLevel{Decisions: maps.Clone(r.decisions)}
}

// SetResolution records the decision for one hunk, replacing any earlier one.
// While an override is active the decision is stored but the content stays
// the override text until ClearOverride.
func (r *FileResolution) SetResolution(hunkID string, kind Kind, customText *string) error {
	if !r.file.HasHunk(hunkID) {
		return apperrors.UnknownHunk(r.file.Path, hunkID)
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}

	res := HunkResolution{HunkID: hunkID, Kind: kind}
	if kind == KindCustom {
		text := ""
		if customText != nil {
			text = *customText
		}
		res.CustomText = &text
	}

	next := maps.Clone(r.decisions)
	next[hunkID] = res
	return r.commit(next, r.override)
}

// ClearResolution drops the decision for one hunk, returning it to its
// yours lines. Clearing an undecided hunk is a no-op.
func (r *FileResolution) ClearResolution(hunkID string) error {
	if !r.file.HasHunk(hunkID) {
		return apperrors.UnknownHunk(r.file.Path, hunkID)
	}
	if _, ok := r.decisions[hunkID]; !ok {
		return nil
	}
	next := maps.Clone(r.decisions)
	delete(next, hunkID)
	return r.commit(next, r.override)
}

// ApplyOverride makes content the merged result verbatim and marks every
// hunk as decided.
func (r *FileResolution) ApplyOverride(content string) {
	r.override = &FullOverride{Content: content}
	r.content = content
}

// ClearOverride drops the override and rebuilds content from the hunk-level
// decisions. It is a no-op when no override is set.
func (r *FileResolution) ClearOverride() error {
	if r.override == nil {
		return nil
	}
	return r.commit(r.decisions, nil)
}

func (r *FileResolution) commit(decisions map[string]HunkResolution, override *FullOverride) error {
	var mode Mode = HunkLevel{Decisions: decisions}
	if override != nil {
		mode = *override
	}
	content, err := Reconstruct(r.file, mode, r.opts)
	if err != nil {
		return err
	}
	r.decisions = decisions
	r.override = override
	r.content = content
	return nil
}

// ResolvedContent returns the current merged content.
func (r *FileResolution) ResolvedContent() string {
	return r.content
}

// HasOverride reports whether a full-content override is active.
func (r *FileResolution) HasOverride() bool {
	return r.override != nil
}

// ResolvedCount returns how many hunks count as decided. With an override
// every hunk counts.
func (r *FileResolution) ResolvedCount() int {
	if r.override != nil {
		return r.file.HunkCount()
	}
	return len(r.decisions)
}

// IsFullyResolved reports whether every hunk is decided or an override is set.
func (r *FileResolution) IsFullyResolved() bool {
	return r.override != nil || len(r.decisions) >= r.file.HunkCount()
}

// State returns the file's position in the resolution state machine.
func (r *FileResolution) State() FileState {
	switch {
	case r.IsFullyResolved():
		return StateResolved
	case len(r.decisions) == 0:
		return StateUnresolved
	default:
		return StatePartial
	}
}

// Resolution returns the decision for one hunk. With an override active
// every hunk reports a custom decision without text.
func (r *FileResolution) Resolution(hunkID string) (HunkResolution, bool) {
	if !r.file.HasHunk(hunkID) {
		return HunkResolution{}, false
	}
	if r.override != nil {
		return HunkResolution{HunkID: hunkID, Kind: KindCustom}, true
	}
	res, ok := r.decisions[hunkID]
	return res, ok
}

// Decisions returns the current decisions in hunk order.
func (r *FileResolution) Decisions() []HunkResolution {
	out := make([]HunkResolution, 0, r.file.HunkCount())
	for _, h := range r.file.Hunks() {
		if res, ok := r.Resolution(h.ID); ok {
			out = append(out, res)
		}
	}
	return out
}

// Snapshot is the persisted form of a FileResolution. Decisions are the
// hunk-level choices, kept separately from any override.
type Snapshot struct {
	Decisions []HunkResolution `json:"decisions"`
	Override  *string          `json:"override,omitempty"`
}

// Snapshot captures the state for storage.
func (r *FileResolution) Snapshot() Snapshot {
	snap := Snapshot{Decisions: make([]HunkResolution, 0, len(r.decisions))}
	for _, h := range r.file.Hunks() {
		if res, ok := r.decisions[h.ID]; ok {
			snap.Decisions = append(snap.Decisions, res)
		}
	}
	if r.override != nil {
		content := r.override.Content
		snap.Override = &content
	}
	return snap
}

// Restore rebuilds a FileResolution from a snapshot. A decision for a hunk
// the file doesn't have means the snapshot was taken against other content,
// and is reported as stale.
func Restore(f *diff.ConflictFile, opts Options, snap Snapshot) (*FileResolution, error) {
	r := NewFileResolution(f, opts)
	decisions := make(map[string]HunkResolution, len(snap.Decisions))
	for _, d := range snap.Decisions {
		if !f.HasHunk(d.HunkID) {
			return nil, apperrors.StaleConflictFile(f.Path)
		}
		if _, err := ParseKind(string(d.Kind)); err != nil {
			return nil, err
		}
		decisions[d.HunkID] = d
	}
	var override *FullOverride
	if snap.Override != nil {
		override = &FullOverride{Content: *snap.Override}
	}
	if err := r.commit(decisions, override); err != nil {
		return nil, err
	}
	return r, nil
}
