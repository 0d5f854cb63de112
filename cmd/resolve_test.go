package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/veroide/mergehost/internal/session"
)

const conflictsJSON = `{"files": [
  {
    "filePath": "flows/login.vero",
    "theirsContent": "A\nX\nD",
    "yoursContent": "A\nB\nC\nD",
    "hunks": [{"id": "h1", "theirsStart": 2, "theirsEnd": 2, "theirsLines": ["X"],
               "yoursStart": 2, "yoursEnd": 3, "yoursLines": ["B", "C"]}]
  },
  {
    "filePath": "flows/cart.vero",
    "theirsContent": "l1\nT2\nl3",
    "yoursContent": "l1\nY2\nl3",
    "hunks": [{"id": "c2", "theirsStart": 2, "theirsEnd": 2, "theirsLines": ["T2"],
               "yoursStart": 2, "yoursEnd": 2, "yoursLines": ["Y2"]}]
  }
]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestResolveAllWritesFiles(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, "")
	input := writeFile(t, dir, "conflicts.json", conflictsJSON)
	outDir := filepath.Join(dir, "merged")

	code, out, errOut := runWithArgs("resolve", "--config", cfgPath, "--input", input, "--all", "theirs", "--out", outDir)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if got := readFile(t, filepath.Join(outDir, "flows", "login.vero")); got != "A\nX\nD" {
		t.Errorf("login = %q", got)
	}
	if got := readFile(t, filepath.Join(outDir, "flows", "cart.vero")); got != "l1\nT2\nl3" {
		t.Errorf("cart = %q", got)
	}
	if !strings.Contains(out, "wrote") {
		t.Errorf("output = %q", out)
	}
}

func TestResolveDecisionsThenAll(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, "")
	input := writeFile(t, dir, "conflicts.json", conflictsJSON)
	decisions := writeFile(t, dir, "decisions.json", `{
  "resolutions": [{"file_path": "flows/login.vero", "hunk_id": "h1", "kind": "both"}],
  "overrides": {}
}`)
	outDir := filepath.Join(dir, "merged")

	code, _, errOut := runWithArgs("resolve", "--config", cfgPath, "--input", input,
		"--decisions", decisions, "--all", "yours", "--both-order", "yours_first", "--out", outDir)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if got := readFile(t, filepath.Join(outDir, "flows", "login.vero")); got != "A\nB\nC\nX\nD" {
		t.Errorf("login = %q", got)
	}
	if got := readFile(t, filepath.Join(outDir, "flows", "cart.vero")); got != "l1\nY2\nl3" {
		t.Errorf("cart = %q", got)
	}
}

func TestResolveOverrideFromDecisions(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, "")
	input := writeFile(t, dir, "conflicts.json", conflictsJSON)
	decisions := writeFile(t, dir, "decisions.json", `{
  "resolutions": [{"file_path": "flows/cart.vero", "hunk_id": "c2", "kind": "custom", "custom_text": "merged"}],
  "overrides": {"flows/login.vero": "rewritten"}
}`)

	code, out, errOut := runWithArgs("resolve", "--config", cfgPath, "--input", input, "--decisions", decisions)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "rewritten") || !strings.Contains(out, "l1\nmerged\nl3") {
		t.Errorf("printed output = %q", out)
	}
}

func TestResolveIncompleteExitsTwo(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, "")
	input := writeFile(t, dir, "conflicts.json", conflictsJSON)
	decisions := writeFile(t, dir, "decisions.json",
		`{"resolutions": [{"file_path": "flows/login.vero", "hunk_id": "h1", "kind": "theirs"}]}`)

	code, out, errOut := runWithArgs("resolve", "--config", cfgPath, "--input", input, "--decisions", decisions)
	if code != exitUnresolved {
		t.Fatalf("exit %d, want %d", code, exitUnresolved)
	}
	if !strings.Contains(errOut, "resolution.incomplete") || !strings.Contains(errOut, "flows/cart.vero") {
		t.Errorf("stderr = %q", errOut)
	}
	if !strings.Contains(out, "flows/cart.vero") {
		t.Errorf("progress missing unresolved file: %q", out)
	}
}

func TestResolveErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, "")
	input := writeFile(t, dir, "conflicts.json", conflictsJSON)
	badHunk := writeFile(t, dir, "bad.json",
		`{"resolutions": [{"file_path": "flows/login.vero", "hunk_id": "zz", "kind": "theirs"}]}`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", nil, "nothing to resolve"},
		{"input and patch", []string{"--input", input, "--patch", input}, "not both"},
		{"patch without files", []string{"--patch", input}, "--theirs-file"},
		{"custom for all", []string{"--input", input, "--all", "custom"}, "resolution.invalid_kind"},
		{"bad kind", []string{"--input", input, "--all", "mine"}, "resolution.invalid_kind"},
		{"unknown hunk", []string{"--input", input, "--decisions", badHunk}, "hunk.unknown"},
		{"submit without url", []string{"--input", input, "--all", "theirs", "--submit"}, "sync_url"},
		{"missing input file", []string{"--input", filepath.Join(dir, "missing.json")}, "provider.failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"resolve", "--config", cfgPath}, tt.args...)
			code, _, errOut := runWithArgs(args...)
			if code == 0 {
				t.Fatal("expected failure")
			}
			if !strings.Contains(errOut, tt.want) {
				t.Errorf("stderr = %q, want it to mention %q", errOut, tt.want)
			}
		})
	}
}

func TestResolveFromPatch(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, "")
	theirs := writeFile(t, dir, "flow.theirs", "A\nX\nD")
	yours := writeFile(t, dir, "flow.yours", "A\nB\nC\nD")
	patch := writeFile(t, dir, "flow.diff", `--- a/flow.vero
+++ b/flow.vero
@@ -1,3 +1,4 @@
 A
-X
+B
+C
 D`)

	code, out, errOut := runWithArgs("resolve", "--config", cfgPath,
		"--theirs-file", theirs, "--yours-file", yours, "--patch", patch, "--path", "flows/flow.vero", "--all", "theirs")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "flows/flow.vero") || !strings.Contains(out, "A\nX\nD") {
		t.Errorf("output = %q", out)
	}
}

func TestResolveSubmit(t *testing.T) {
	var mu sync.Mutex
	var got session.CommitPayload
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res := session.CommitResult{Files: map[string]session.FileCommitResult{}}
		for path := range got.Files {
			res.Files[path] = session.FileCommitResult{OK: true}
		}
		json.NewEncoder(w).Encode(res)
	}))
	defer ts.Close()

	dir := t.TempDir()
	cfgPath := writeConfig(t, "")
	input := writeFile(t, dir, "conflicts.json", conflictsJSON)

	code, out, errOut := runWithArgs("resolve", "--config", cfgPath, "--input", input, "--all", "theirs",
		"--out", filepath.Join(dir, "merged"), "--submit", "--sync-url", ts.URL, "--sandbox", "sb-9", "--source", "release")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "committed 2 files to sb-9") {
		t.Errorf("output = %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/sandboxes/sb-9/commits" {
		t.Errorf("path = %q", gotPath)
	}
	if got.SourceBranch != "release" || got.Files["flows/login.vero"] != "A\nX\nD" {
		t.Errorf("payload = %+v", got)
	}
}

func TestWriteMergedRejectsEscapingPaths(t *testing.T) {
	p := &session.CommitPayload{Files: map[string]string{"../evil": "x"}}
	var out strings.Builder
	if err := writeMerged(&out, p, t.TempDir()); err == nil {
		t.Fatal("expected an error for a path outside the output directory")
	}
}
