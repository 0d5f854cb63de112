package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/veroide/mergehost/internal/diff"
	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/resolve"
	"github.com/veroide/mergehost/internal/session"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testFiles(t *testing.T) []*diff.ConflictFile {
	t.Helper()
	login, err := diff.NewConflictFile("flows/login.vero", "A\nX\nD", "A\nB\nC\nD", []diff.Hunk{{
		ID:          "h1",
		Theirs:      diff.LineRange{Start: 2, End: 2},
		Yours:       diff.LineRange{Start: 2, End: 3},
		TheirsLines: []string{"X"},
		YoursLines:  []string{"B", "C"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	cart, err := diff.NewConflictFile("flows/cart.vero", "l1\nT2\nl3", "l1\nY2\nl3", []diff.Hunk{{
		ID:          "c2",
		Theirs:      diff.LineRange{Start: 2, End: 2},
		Yours:       diff.LineRange{Start: 2, End: 2},
		TheirsLines: []string{"T2"},
		YoursLines:  []string{"Y2"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return []*diff.ConflictFile{login, cart}
}

func openSession(t *testing.T, opts resolve.Options) *session.Session {
	t.Helper()
	s, err := session.Open(session.Meta{SandboxID: "sb-1", SourceBranch: "main"}, testFiles(t), opts)
	if err != nil {
		t.Fatalf("session.Open failed: %v", err)
	}
	return s
}

func TestNewSQLiteStore(t *testing.T) {
	store := newTestStore(t)

	sessions, err := store.ListSessions(0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected empty list, got %d sessions", len(sessions))
	}
}

func TestNewSQLiteStore_ReopenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergehost.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	sess := openSession(t, resolve.Options{})
	if err := store.SaveDraft(sess); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}
	store.Close()

	// Migrations must be idempotent across opens.
	store, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()
	if _, err := store.LoadDraft(sess.ID); err != nil {
		t.Errorf("LoadDraft after reopen failed: %v", err)
	}
}

func TestSaveAndLoadDraft(t *testing.T) {
	store := newTestStore(t)
	sess := openSession(t, resolve.Options{BothOrder: resolve.YoursFirst})

	if _, err := sess.SetResolution("flows/cart.vero", "c2", resolve.KindBoth, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.ApplyOverride("flows/login.vero", "hand merged"); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveDraft(sess); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	got, err := store.LoadDraft(sess.ID)
	if err != nil {
		t.Fatalf("LoadDraft failed: %v", err)
	}
	if got.ID != sess.ID || got.Meta != sess.Meta {
		t.Errorf("identity mismatch: %+v", got.Meta)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, sess.CreatedAt)
	}
	if got.Options().BothOrder != resolve.YoursFirst {
		t.Errorf("both order = %q", got.Options().BothOrder)
	}

	files := got.Files()
	if len(files) != 2 || files[0].Path != "flows/login.vero" || files[1].Path != "flows/cart.vero" {
		t.Fatalf("file order not preserved")
	}

	cart, _ := got.Resolution("flows/cart.vero")
	if cart.ResolvedContent() != "l1\nY2\nT2\nl3" {
		t.Errorf("cart = %q", cart.ResolvedContent())
	}
	login, _ := got.Resolution("flows/login.vero")
	if !login.HasOverride() || login.ResolvedContent() != "hand merged" {
		t.Errorf("login = %q", login.ResolvedContent())
	}
	if !got.AllFilesResolved() {
		t.Error("restored session should be committable")
	}
}

func TestSaveDraft_ReplacesResolutions(t *testing.T) {
	store := newTestStore(t)
	sess := openSession(t, resolve.Options{})

	_, _ = sess.SetResolution("flows/cart.vero", "c2", resolve.KindTheirs, nil)
	if err := store.SaveDraft(sess); err != nil {
		t.Fatal(err)
	}
	_, _ = sess.ClearResolution("flows/cart.vero", "c2")
	if err := store.SaveDraft(sess); err != nil {
		t.Fatal(err)
	}

	got, err := store.LoadDraft(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	cart, _ := got.Resolution("flows/cart.vero")
	if cart.ResolvedCount() != 0 {
		t.Errorf("cleared decision came back: %+v", cart.Decisions())
	}

	records, _ := store.ListSessions(0)
	if len(records) != 1 || records[0].Files != 2 {
		t.Errorf("records = %+v", records)
	}
}

func TestLoadDraft_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadDraft("missing")
	if !apperrors.IsCode(err, apperrors.CodeStorageNotFound) {
		t.Errorf("expected storage.not_found, got %v", err)
	}
}

func TestLoadDraft_StaleFingerprint(t *testing.T) {
	store := newTestStore(t)
	sess := openSession(t, resolve.Options{})
	if err := store.SaveDraft(sess); err != nil {
		t.Fatal(err)
	}

	if _, err := store.db.Exec("UPDATE session_files SET fingerprint = 'x' WHERE file_path = 'flows/cart.vero'"); err != nil {
		t.Fatal(err)
	}
	_, err := store.LoadDraft(sess.ID)
	if !apperrors.IsCode(err, apperrors.CodeConflictStale) {
		t.Errorf("expected conflict.stale, got %v", err)
	}

	drafts, err := store.LoadDrafts()
	if err != nil {
		t.Fatalf("LoadDrafts failed: %v", err)
	}
	if len(drafts) != 0 {
		t.Errorf("stale draft should be skipped, got %d", len(drafts))
	}
}

func TestListSessions_Order(t *testing.T) {
	store := newTestStore(t)
	older := openSession(t, resolve.Options{})
	newer := openSession(t, resolve.Options{})
	newer.UpdatedAt = older.UpdatedAt.Add(time.Second)

	for _, s := range []*session.Session{older, newer} {
		if err := store.SaveDraft(s); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.ListSessions(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].ID != newer.ID {
		t.Errorf("expected newest first, got %+v", records)
	}
	limited, _ := store.ListSessions(1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d", len(limited))
	}
}

func TestDeleteSession(t *testing.T) {
	store := newTestStore(t)
	sess := openSession(t, resolve.Options{})
	if err := store.SaveDraft(sess); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteSession(sess.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if err := store.DeleteSession(sess.ID); !apperrors.IsCode(err, apperrors.CodeStorageNotFound) {
		t.Errorf("expected storage.not_found, got %v", err)
	}
	if err := store.DeleteDraft(sess.ID); err != nil {
		t.Errorf("DeleteDraft of a missing draft should succeed, got %v", err)
	}

	var n int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM session_files").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("files should cascade, %d left", n)
	}
}

func TestRecordAndListCommits(t *testing.T) {
	store := newTestStore(t)
	payload := &session.CommitPayload{
		SessionID:    "s1",
		SandboxID:    "sb-1",
		SourceBranch: "main",
		Files:        map[string]string{"a.vero": "merged"},
	}
	result := &session.CommitResult{Files: map[string]session.FileCommitResult{"a.vero": {OK: true}}}

	if err := store.RecordCommit(payload, result); err != nil {
		t.Fatalf("RecordCommit failed: %v", err)
	}

	commits, err := store.ListCommits(0)
	if err != nil {
		t.Fatalf("ListCommits failed: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("got %d commits", len(commits))
	}
	c := commits[0]
	if c.ID == "" || c.SessionID != "s1" || c.Files["a.vero"] != "merged" || !c.Results["a.vero"].OK {
		t.Errorf("commit = %+v", c)
	}
}

func TestRecordCommit_Retention(t *testing.T) {
	store := newTestStore(t)
	payload := &session.CommitPayload{SessionID: "s", Files: map[string]string{}}
	for i := 0; i < maxCommits+5; i++ {
		if err := store.RecordCommit(payload, nil); err != nil {
			t.Fatal(err)
		}
	}
	commits, err := store.ListCommits(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != maxCommits {
		t.Errorf("kept %d commits, want %d", len(commits), maxCommits)
	}
}

func TestStoreImplementsManagerInterfaces(t *testing.T) {
	var _ session.DraftStore = (*SQLiteStore)(nil)
	var _ session.CommitLog = (*SQLiteStore)(nil)
}
