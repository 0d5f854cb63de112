package diff

import (
	"strings"
	"testing"

	apperrors "github.com/veroide/mergehost/internal/errors"
)

const providerJSON = `[
  {
    "filePath": "flows/login.vero",
    "theirsContent": "A\nX\nD",
    "yoursContent": "A\nB\nC\nD",
    "hunks": [
      {"id": "h1", "theirsStart": 2, "theirsEnd": 2, "theirsLines": ["X"],
       "yoursStart": 2, "yoursEnd": 3, "yoursLines": ["B", "C"]}
    ]
  }
]`

func TestDecodeProviderFiles_Array(t *testing.T) {
	files, err := DecodeProviderFiles(strings.NewReader(providerJSON))
	if err != nil {
		t.Fatalf("DecodeProviderFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].FilePath != "flows/login.vero" {
		t.Fatalf("unexpected files: %+v", files)
	}

	cf, err := files[0].ToConflictFile()
	if err != nil {
		t.Fatalf("ToConflictFile failed: %v", err)
	}
	h, ok := cf.Hunk("h1")
	if !ok {
		t.Fatal("hunk h1 missing")
	}
	if h.Yours != (LineRange{2, 3}) || h.Theirs != (LineRange{2, 2}) {
		t.Errorf("unexpected ranges %v / %v", h.Yours, h.Theirs)
	}
}

func TestDecodeProviderFiles_Wrapped(t *testing.T) {
	files, err := DecodeProviderFiles(strings.NewReader(`{"files": ` + providerJSON + `}`))
	if err != nil {
		t.Fatalf("DecodeProviderFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
}

func TestDecodeProviderFiles_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "[{", "{\"files\": 3}"} {
		_, err := DecodeProviderFiles(strings.NewReader(input))
		if !apperrors.IsCode(err, apperrors.CodeProviderInvalidInput) {
			t.Errorf("input %q: expected provider.invalid_input, got %v", input, err)
		}
	}
}

func TestProviderFile_GeneratesMissingIDs(t *testing.T) {
	pf := ProviderFile{
		FilePath:      "a.vero",
		TheirsContent: "X",
		YoursContent:  "A",
		Hunks: []ProviderHunk{{
			TheirsStart: 1, TheirsEnd: 1, TheirsLines: []string{"X"},
			YoursStart: 1, YoursEnd: 1, YoursLines: []string{"A"},
		}},
	}
	cf, err := pf.ToConflictFile()
	if err != nil {
		t.Fatalf("ToConflictFile failed: %v", err)
	}
	id := cf.Hunks()[0].ID
	want := HunkID("a.vero", LineRange{1, 1}, LineRange{1, 1}, []string{"X"}, []string{"A"})
	if id != want {
		t.Errorf("generated id = %q, want %q", id, want)
	}

	back := FromConflictFile(cf)
	if back.Hunks[0].ID != id || back.FilePath != "a.vero" {
		t.Errorf("FromConflictFile lost data: %+v", back)
	}
}

func TestBuildConflictFiles_StopsAtInvalid(t *testing.T) {
	_, err := BuildConflictFiles([]ProviderFile{
		{FilePath: "ok.vero", YoursContent: "A"},
		{FilePath: ""},
	})
	if !apperrors.IsCode(err, apperrors.CodeProviderInvalidInput) {
		t.Errorf("expected provider.invalid_input, got %v", err)
	}
}
