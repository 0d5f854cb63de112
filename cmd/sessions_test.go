package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/veroide/mergehost/internal/diff"
	"github.com/veroide/mergehost/internal/resolve"
	"github.com/veroide/mergehost/internal/session"
	"github.com/veroide/mergehost/internal/storage"
)

// seedStore saves one open session with one of its two hunks decided.
func seedStore(t *testing.T, dbPath string) string {
	t.Helper()
	f, err := os.Open(writeFile(t, t.TempDir(), "c.json", conflictsJSON))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	pf, err := diff.DecodeProviderFiles(f)
	if err != nil {
		t.Fatalf("DecodeProviderFiles failed: %v", err)
	}
	files, err := diff.BuildConflictFiles(pf)
	if err != nil {
		t.Fatalf("BuildConflictFiles failed: %v", err)
	}

	s, err := session.Open(session.Meta{SandboxID: "sb-1", SourceBranch: "main"}, files, resolve.Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.SetResolution("flows/login.vero", "h1", resolve.KindTheirs, nil); err != nil {
		t.Fatalf("SetResolution failed: %v", err)
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()
	if err := store.SaveDraft(s); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}
	return s.ID
}

func TestSessionsCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, "")
	db := filepath.Join(dir, "host.db")
	id := seedStore(t, db)

	code, out, errOut := runWithArgs("sessions", "list", "--config", cfgPath, "--db", db)
	if code != 0 {
		t.Fatalf("list exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "sb-1") {
		t.Errorf("list output = %q", out)
	}

	code, out, errOut = runWithArgs("sessions", "show", id, "--config", cfgPath, "--db", db)
	if code != 0 {
		t.Fatalf("show exit %d: %s", code, errOut)
	}
	for _, want := range []string{"flows/login.vero", "flows/cart.vero", "1/1", "0/1", "Commit:   false"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	code, _, errOut = runWithArgs("sessions", "delete", id, "--config", cfgPath, "--db", db)
	if code != 0 {
		t.Fatalf("delete exit %d: %s", code, errOut)
	}

	code, out, _ = runWithArgs("sessions", "list", "--config", cfgPath, "--db", db)
	if code != 0 || !strings.Contains(out, "No open sessions.") {
		t.Errorf("list after delete = %d %q", code, out)
	}

	code, _, errOut = runWithArgs("sessions", "delete", id, "--config", cfgPath, "--db", db)
	if code != 1 || !strings.Contains(errOut, "storage.not_found") {
		t.Errorf("second delete = %d %q", code, errOut)
	}
}

func TestSessionsCommitsEmpty(t *testing.T) {
	cfgPath := writeConfig(t, "")
	db := filepath.Join(t.TempDir(), "host.db")

	code, out, errOut := runWithArgs("sessions", "commits", "--config", cfgPath, "--db", db)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "No commits recorded.") {
		t.Errorf("output = %q", out)
	}
}

func TestSessionsShowUnknown(t *testing.T) {
	cfgPath := writeConfig(t, "")
	db := filepath.Join(t.TempDir(), "host.db")

	code, _, errOut := runWithArgs("sessions", "show", "missing", "--config", cfgPath, "--db", db)
	if code != 1 || !strings.Contains(errOut, "storage.not_found") {
		t.Errorf("show unknown = %d %q", code, errOut)
	}
}
