package resolve

import (
	"testing"

	apperrors "github.com/veroide/mergehost/internal/errors"
)

func TestFileResolution_Initial(t *testing.T) {
	f := scenarioFile(t)
	r := NewFileResolution(f, Options{})

	if r.ResolvedContent() != f.YoursContent {
		t.Errorf("initial content should be yours, got %q", r.ResolvedContent())
	}
	if r.IsFullyResolved() {
		t.Error("new file with hunks should not be resolved")
	}
	if r.State() != StateUnresolved {
		t.Errorf("State() = %s, want unresolved", r.State())
	}
	if r.ResolvedCount() != 0 {
		t.Errorf("ResolvedCount() = %d", r.ResolvedCount())
	}
}

func TestFileResolution_SetResolution(t *testing.T) {
	f := scenarioFile(t)
	r := NewFileResolution(f, Options{})

	if err := r.SetResolution("h1", KindTheirs, nil); err != nil {
		t.Fatalf("SetResolution failed: %v", err)
	}
	if r.ResolvedContent() != "A\nX\nD" {
		t.Errorf("content = %q", r.ResolvedContent())
	}
	if !r.IsFullyResolved() || r.State() != StateResolved {
		t.Error("single hunk file should be resolved")
	}

	// Re-deciding replaces rather than accumulates.
	if err := r.SetResolution("h1", KindCustom, strPtr("Z1\nZ2")); err != nil {
		t.Fatalf("SetResolution failed: %v", err)
	}
	if r.ResolvedCount() != 1 {
		t.Errorf("ResolvedCount() = %d after re-deciding", r.ResolvedCount())
	}
	if r.ResolvedContent() != "A\nZ1\nZ2\nD" {
		t.Errorf("content = %q", r.ResolvedContent())
	}
}

func TestFileResolution_Idempotent(t *testing.T) {
	f := sixLineFile(t)
	once := NewFileResolution(f, Options{})
	twice := NewFileResolution(f, Options{})

	if err := once.SetResolution("h2", KindBoth, nil); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := twice.SetResolution("h2", KindBoth, nil); err != nil {
			t.Fatal(err)
		}
	}
	if once.ResolvedContent() != twice.ResolvedContent() {
		t.Errorf("idempotence broken: %q vs %q", once.ResolvedContent(), twice.ResolvedContent())
	}
}

func TestFileResolution_OrderIndependence(t *testing.T) {
	f := buildFile(t, 3)
	type step struct {
		id   string
		kind Kind
		text *string
	}
	steps := []step{
		{"h0", KindTheirs, nil},
		{"h1", KindCustom, strPtr("c1\nc2")},
		{"h2", KindBoth, nil},
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var first string
	for i, p := range perms {
		r := NewFileResolution(f, Options{})
		for _, idx := range p {
			s := steps[idx]
			if err := r.SetResolution(s.id, s.kind, s.text); err != nil {
				t.Fatalf("perm %v: %v", p, err)
			}
		}
		if i == 0 {
			first = r.ResolvedContent()
			continue
		}
		if r.ResolvedContent() != first {
			t.Errorf("perm %v gave %q, want %q", p, r.ResolvedContent(), first)
		}
	}
}

func TestFileResolution_UnknownHunkDoesNotMutate(t *testing.T) {
	f := scenarioFile(t)
	r := NewFileResolution(f, Options{})
	if err := r.SetResolution("h1", KindTheirs, nil); err != nil {
		t.Fatal(err)
	}

	err := r.SetResolution("nope", KindYours, nil)
	if !apperrors.IsCode(err, apperrors.CodeHunkUnknown) {
		t.Fatalf("expected hunk.unknown, got %v", err)
	}
	if r.ResolvedContent() != "A\nX\nD" || r.ResolvedCount() != 1 {
		t.Error("failed SetResolution must not change state")
	}

	if err := r.ClearResolution("nope"); !apperrors.IsCode(err, apperrors.CodeHunkUnknown) {
		t.Errorf("ClearResolution: expected hunk.unknown, got %v", err)
	}
}

func TestFileResolution_InvalidKind(t *testing.T) {
	r := NewFileResolution(scenarioFile(t), Options{})
	err := r.SetResolution("h1", Kind("mine"), nil)
	if !apperrors.IsCode(err, apperrors.CodeResolutionInvalidKind) {
		t.Errorf("expected resolution.invalid_kind, got %v", err)
	}
	if r.ResolvedCount() != 0 {
		t.Error("invalid kind must not be recorded")
	}
}

func TestFileResolution_ClearResolution(t *testing.T) {
	f := sixLineFile(t)
	r := NewFileResolution(f, Options{})
	_ = r.SetResolution("h2", KindTheirs, nil)
	_ = r.SetResolution("h5", KindTheirs, nil)
	if r.State() != StateResolved {
		t.Fatal("expected resolved")
	}

	if err := r.ClearResolution("h5"); err != nil {
		t.Fatalf("ClearResolution failed: %v", err)
	}
	if r.State() != StatePartial {
		t.Errorf("State() = %s, want partial", r.State())
	}
	if r.ResolvedContent() != "l1\nT2\nl3\nl4\nY5\nl6" {
		t.Errorf("content = %q", r.ResolvedContent())
	}
	if err := r.ClearResolution("h5"); err != nil {
		t.Errorf("clearing an undecided hunk should be a no-op, got %v", err)
	}
}

func TestFileResolution_Override(t *testing.T) {
	f := sixLineFile(t)
	r := NewFileResolution(f, Options{})
	_ = r.SetResolution("h2", KindTheirs, nil)
	if r.State() != StatePartial {
		t.Fatalf("State() = %s, want partial", r.State())
	}

	r.ApplyOverride("hand written")
	if !r.HasOverride() || !r.IsFullyResolved() {
		t.Error("override should resolve the file")
	}
	if r.ResolvedContent() != "hand written" {
		t.Errorf("content = %q", r.ResolvedContent())
	}
	if r.ResolvedCount() != 2 {
		t.Errorf("ResolvedCount() = %d, want every hunk", r.ResolvedCount())
	}
	for _, d := range r.Decisions() {
		if d.Kind != KindCustom || d.CustomText != nil {
			t.Errorf("override placeholder should be custom without text, got %+v", d)
		}
	}
	if _, ok := r.Mode().(FullOverride); !ok {
		t.Errorf("Mode() = %T, want FullOverride", r.Mode())
	}

	// Decisions made under an override don't touch the content.
	if err := r.SetResolution("h5", KindTheirs, nil); err != nil {
		t.Fatal(err)
	}
	if r.ResolvedContent() != "hand written" {
		t.Errorf("override content changed to %q", r.ResolvedContent())
	}

	if err := r.ClearOverride(); err != nil {
		t.Fatalf("ClearOverride failed: %v", err)
	}
	if r.HasOverride() {
		t.Error("override should be gone")
	}
	if r.ResolvedContent() != "l1\nT2\nl3\nl4\nT5\nl6" {
		t.Errorf("content after clear = %q", r.ResolvedContent())
	}
	if err := r.ClearOverride(); err != nil {
		t.Errorf("second ClearOverride should be a no-op, got %v", err)
	}
}

func TestFileResolution_NoHunks(t *testing.T) {
	f := buildFile(t, 0)
	r := NewFileResolution(f, Options{})
	if !r.IsFullyResolved() {
		t.Error("a file without hunks is trivially resolved")
	}
}

func TestSnapshotRestore(t *testing.T) {
	f := sixLineFile(t)
	r := NewFileResolution(f, Options{})
	_ = r.SetResolution("h5", KindCustom, strPtr("new"))
	r.ApplyOverride("ovr")

	restored, err := Restore(f, Options{}, r.Snapshot())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.ResolvedContent() != "ovr" || !restored.HasOverride() {
		t.Errorf("override not restored: %q", restored.ResolvedContent())
	}
	if err := restored.ClearOverride(); err != nil {
		t.Fatal(err)
	}
	if restored.ResolvedContent() != "l1\nY2\nl3\nl4\nnew\nl6" {
		t.Errorf("hunk decisions not restored: %q", restored.ResolvedContent())
	}
}

func TestRestore_StaleDecision(t *testing.T) {
	f := scenarioFile(t)
	_, err := Restore(f, Options{}, Snapshot{Decisions: []HunkResolution{{HunkID: "gone", Kind: KindTheirs}}})
	if !apperrors.IsCode(err, apperrors.CodeConflictStale) {
		t.Errorf("expected conflict.stale, got %v", err)
	}
}

func TestParseKindAndOrder(t *testing.T) {
	for _, s := range []string{"theirs", "yours", "both", "custom"} {
		if _, err := ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseKind("ours"); err == nil {
		t.Error("ParseKind should reject ours")
	}
	if o, err := ParseBothOrder(""); err != nil || o != TheirsFirst {
		t.Errorf("empty both order should default to theirs_first, got %q %v", o, err)
	}
	if _, err := ParseBothOrder("random"); !apperrors.IsCode(err, apperrors.CodeConfigInvalidOption) {
		t.Errorf("ParseBothOrder(random): expected config.invalid_option, got %v", err)
	}
}
