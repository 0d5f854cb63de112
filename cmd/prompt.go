package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	"github.com/veroide/mergehost/internal/diff"
	"github.com/veroide/mergehost/internal/resolve"
	"github.com/veroide/mergehost/internal/session"
)

const choiceSkip = "skip"

// promptUndecided asks for a decision on every hunk that doesn't have one.
// Files under an override are left alone. Choosing skip leaves the hunk
// undecided.
func promptUndecided(w io.Writer, s *session.Session) error {
	for _, f := range s.Files() {
		r, err := s.Resolution(f.Path)
		if err != nil {
			return err
		}
		if r.HasOverride() {
			continue
		}
		hunks := f.Hunks()
		for i, h := range hunks {
			if _, ok := r.Resolution(h.ID); ok {
				continue
			}
			fmt.Fprintln(w, renderHunk(f.Path, h, i+1, len(hunks)))

			kind, text, err := promptHunk(f.Path, h)
			if err != nil {
				return fmt.Errorf("failed to get a decision for %s: %w", f.Path, err)
			}
			if kind == "" {
				continue
			}
			if _, err := s.SetResolution(f.Path, h.ID, kind, text); err != nil {
				return err
			}
		}
	}
	return nil
}

// promptHunk returns the chosen kind, or "" for skip.
func promptHunk(path string, h diff.Hunk) (resolve.Kind, *string, error) {
	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Resolve %s lines %s", path, h.Yours)).
				Options(
					huh.NewOption("Take theirs (source branch)", string(resolve.KindTheirs)),
					huh.NewOption("Keep yours (sandbox)", string(resolve.KindYours)),
					huh.NewOption("Keep both", string(resolve.KindBoth)),
					huh.NewOption("Write custom text", string(resolve.KindCustom)),
					huh.NewOption("Skip for now", choiceSkip),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", nil, err
	}
	if choice == choiceSkip {
		return "", nil, nil
	}

	kind, err := resolve.ParseKind(choice)
	if err != nil {
		return "", nil, err
	}
	if kind != resolve.KindCustom {
		return kind, nil, nil
	}

	text := diff.JoinLines(h.YoursLines)
	edit := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Replacement text").
				Description("Leave empty to delete the region.").
				Value(&text),
		),
	)
	if err := edit.Run(); err != nil {
		return "", nil, err
	}
	return kind, &text, nil
}
