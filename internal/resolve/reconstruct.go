package resolve

import (
	"fmt"
	"slices"

	"github.com/veroide/mergehost/internal/diff"
	apperrors "github.com/veroide/mergehost/internal/errors"
)

// Mode is the resolution mode of a file: HunkLevel or FullOverride.
type Mode interface {
	isMode()
}

// HunkLevel rebuilds content from per-hunk decisions keyed by hunk id.
type HunkLevel struct {
	Decisions map[string]HunkResolution
}

// FullOverride replaces the merged content verbatim.
type FullOverride struct {
	Content string
}

func (HunkLevel) isMode()    {}
func (FullOverride) isMode() {}

// Reconstruct produces the merged content of f under mode m.
// A FullOverride is returned as-is; the splice algorithm never runs over it.
func Reconstruct(f *diff.ConflictFile, m Mode, opts Options) (string, error) {
	switch m := m.(type) {
	case FullOverride:
		return m.Content, nil
	case HunkLevel:
		return Splice(f.Path, f.YoursContent, f.Hunks(), m.Decisions, opts)
	default:
		return "", apperrors.Internal(fmt.Sprintf("unknown resolution mode %T", m), nil)
	}
}

// Splice applies decisions to base (the yours revision) and returns the
// merged text. Hunks without a decision keep their yours lines.
//
// Decided hunks are applied from the highest Yours.Start down. A splice only
// shifts the lines after it, so every remaining hunk still finds its lines at
// the position recorded in its original range.
func Splice(file, base string, hunks []diff.Hunk, decisions map[string]HunkResolution, opts Options) (string, error) {
	lines := diff.SplitLines(base)
	n := len(lines)

	selected := make([]diff.Hunk, 0, len(decisions))
	for _, h := range hunks {
		if _, ok := decisions[h.ID]; ok {
			selected = append(selected, h)
		}
	}

	// Validate everything before touching the lines.
	for _, h := range selected {
		if !h.Yours.WellFormed() {
			return "", apperrors.MalformedHunkRange(file, h.ID, "yours range "+h.Yours.String()+" ends before it starts")
		}
		if !h.Yours.Within(n) {
			return "", apperrors.MalformedHunkRange(file, h.ID,
				fmt.Sprintf("yours range %s is outside a %d line file", h.Yours, n))
		}
	}

	slices.SortStableFunc(selected, func(a, b diff.Hunk) int {
		return b.Yours.Start - a.Yours.Start
	})

	for _, h := range selected {
		repl, err := replacement(h, decisions[h.ID], opts)
		if err != nil {
			return "", err
		}
		from := h.Yours.Start - 1
		to := h.Yours.End // exclusive; equals from for an insertion

		next := make([]string, 0, len(lines)-(to-from)+len(repl))
		next = append(next, lines[:from]...)
		next = append(next, repl...)
		next = append(next, lines[to:]...)
		lines = next
	}

	return diff.JoinLines(lines), nil
}

// replacement returns the lines that take the place of h under r.
func replacement(h diff.Hunk, r HunkResolution, opts Options) ([]string, error) {
	switch r.Kind {
	case KindTheirs:
		return h.TheirsLines, nil
	case KindYours:
		return h.YoursLines, nil
	case KindBoth:
		first, second := h.TheirsLines, h.YoursLines
		if opts.BothOrder == YoursFirst {
			first, second = second, first
		}
		out := make([]string, 0, len(first)+len(second))
		out = append(out, first...)
		return append(out, second...), nil
	case KindCustom:
		if r.CustomText == nil {
			return nil, nil
		}
		return diff.SplitText(*r.CustomText), nil
	default:
		return nil, apperrors.InvalidResolutionKind(string(r.Kind))
	}
}
