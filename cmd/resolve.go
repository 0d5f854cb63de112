package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/veroide/mergehost/internal/config"
	"github.com/veroide/mergehost/internal/diff"
	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/remote"
	"github.com/veroide/mergehost/internal/resolve"
	"github.com/veroide/mergehost/internal/session"
)

// exitUnresolved is returned when files are still unresolved at the end.
const exitUnresolved = 2

// decisionsFile is the --decisions input.
type decisionsFile struct {
	Resolutions []struct {
		FilePath   string  `json:"file_path"`
		HunkID     string  `json:"hunk_id"`
		Kind       string  `json:"kind"`
		CustomText *string `json:"custom_text,omitempty"`
	} `json:"resolutions"`

	// Overrides maps a file path to its full merged content.
	Overrides map[string]string `json:"overrides,omitempty"`
}

type resolveOptions struct {
	input       string
	theirsFile  string
	yoursFile   string
	patch       string
	path        string
	decisions   string
	all         string
	interactive bool
	out         string
	sandbox     string
	source      string
	submit      bool
}

func newResolveCmd() *cobra.Command {
	var o resolveOptions
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a conflict payload from the terminal",
		Long: `Resolve conflicts without a running host.

Conflicts come from a provider JSON file (--input) or from a single file pair
and the unified diff between them (--theirs-file, --yours-file, --patch).
Decisions are applied from --decisions, then --all, then interactively with
--interactive. When every file is resolved the merged files are written to
--out (or printed) and, with --submit, sent to the sync service.

Exits with status 2 if any file is still unresolved.`,
		Example: `  mergehost resolve --input conflicts.json --all theirs --out merged/
  mergehost resolve --theirs-file a.main --yours-file a.sandbox --patch a.diff --path flows/a.vero -i`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runResolve(cmd.Context(), cmd.OutOrStdout(), cfg, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.input, "input", "", "Provider JSON file with conflict files")
	f.StringVar(&o.theirsFile, "theirs-file", "", "Source-branch revision of a single file")
	f.StringVar(&o.yoursFile, "yours-file", "", "Sandbox revision of a single file")
	f.StringVar(&o.patch, "patch", "", "Unified diff from --theirs-file to --yours-file")
	f.StringVar(&o.path, "path", "", "Repository path of the single file (default: --yours-file)")
	f.StringVar(&o.decisions, "decisions", "", "JSON file with hunk decisions and overrides")
	f.StringVar(&o.all, "all", "", "Decide every remaining hunk: theirs, yours or both")
	f.BoolVarP(&o.interactive, "interactive", "i", false, "Prompt for every remaining hunk")
	f.StringVar(&o.out, "out", "", "Directory to write merged files into (default: print)")
	f.StringVar(&o.sandbox, "sandbox", "local", "Sandbox id for the session")
	f.StringVar(&o.source, "source", "main", "Source branch for the session")
	f.BoolVar(&o.submit, "submit", false, "Send the merged files to the sync service")
	f.String("both-order", "", "Side order for \"both\": theirs_first or yours_first")
	f.String("sync-url", "", "Sync service base URL (for --submit)")
	return cmd
}

func runResolve(ctx context.Context, w io.Writer, cfg *config.Config, o resolveOptions) error {
	files, err := loadConflicts(ctx, o)
	if err != nil {
		return err
	}

	s, err := session.Open(session.Meta{SandboxID: o.sandbox, SourceBranch: o.source}, files, cfg.ResolveOptions())
	if err != nil {
		return err
	}

	if o.decisions != "" {
		if err := applyDecisionsFile(s, o.decisions); err != nil {
			return err
		}
	}
	if o.all != "" {
		if err := decideRemaining(s, o.all); err != nil {
			return err
		}
	}
	if o.interactive {
		if err := promptUndecided(w, s); err != nil {
			return err
		}
	}

	payload, err := s.BuildCommitPayload()
	if err != nil {
		fmt.Fprintln(w, titleStyle.Render("Unresolved"))
		fmt.Fprint(w, renderProgress(s.Progress()))
		return &exitError{code: exitUnresolved, err: err}
	}

	if err := writeMerged(w, payload, o.out); err != nil {
		return err
	}
	if !o.submit {
		return nil
	}
	return submit(ctx, w, cfg, payload)
}

func loadConflicts(ctx context.Context, o resolveOptions) ([]*diff.ConflictFile, error) {
	switch {
	case o.input != "" && o.patch != "":
		return nil, errors.New("use either --input or --patch, not both")
	case o.input != "":
		return remote.FileProvider{Path: o.input}.FetchConflicts(ctx, o.sandbox, o.source)
	case o.patch != "":
		if o.theirsFile == "" || o.yoursFile == "" {
			return nil, errors.New("--patch needs --theirs-file and --yours-file")
		}
		theirs, err := os.ReadFile(o.theirsFile)
		if err != nil {
			return nil, err
		}
		yours, err := os.ReadFile(o.yoursFile)
		if err != nil {
			return nil, err
		}
		unified, err := os.ReadFile(o.patch)
		if err != nil {
			return nil, err
		}
		path := o.path
		if path == "" {
			path = filepath.ToSlash(o.yoursFile)
		}
		f, err := diff.NewParser().ParseHunks(path, string(theirs), string(yours), string(unified))
		if err != nil {
			return nil, err
		}
		return []*diff.ConflictFile{f}, nil
	default:
		return nil, errors.New("nothing to resolve: pass --input or --patch")
	}
}

func applyDecisionsFile(s *session.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var df decisionsFile
	if err := json.Unmarshal(data, &df); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for _, d := range df.Resolutions {
		kind, err := resolve.ParseKind(d.Kind)
		if err != nil {
			return err
		}
		if _, err := s.SetResolution(d.FilePath, d.HunkID, kind, d.CustomText); err != nil {
			return err
		}
	}
	for file, content := range df.Overrides {
		if _, err := s.ApplyOverride(file, content); err != nil {
			return err
		}
	}
	return nil
}

// decideRemaining applies kind to every undecided hunk.
func decideRemaining(s *session.Session, kind string) error {
	k, err := resolve.ParseKind(kind)
	if err != nil {
		return err
	}
	if k == resolve.KindCustom {
		return apperrors.InvalidResolutionKind("custom cannot be applied to every hunk")
	}
	for _, f := range s.Files() {
		r, err := s.Resolution(f.Path)
		if err != nil {
			return err
		}
		for _, h := range f.Hunks() {
			if _, ok := r.Resolution(h.ID); ok {
				continue
			}
			if _, err := s.SetResolution(f.Path, h.ID, k, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeMerged writes each file under dir, or prints them when dir is empty.
func writeMerged(w io.Writer, payload *session.CommitPayload, dir string) error {
	for _, path := range payload.Paths() {
		content := payload.Files[path]
		if dir == "" {
			fmt.Fprintln(w, titleStyle.Render("==> "+path))
			fmt.Fprintln(w, content)
			continue
		}

		dst := filepath.Join(dir, filepath.FromSlash(path))
		if !filepath.IsLocal(filepath.FromSlash(path)) {
			return fmt.Errorf("refusing to write %s outside %s", path, dir)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", dst)
	}
	return nil
}

func submit(ctx context.Context, w io.Writer, cfg *config.Config, payload *session.CommitPayload) error {
	if cfg.SyncURL == "" {
		return errors.New("--submit needs sync_url in the config or --sync-url")
	}
	client := remote.NewCommitClient(remote.ClientOptions{
		BaseURL:    cfg.SyncURL,
		Timeout:    cfg.RequestTimeout(),
		MaxRetries: cfg.CommitMaxRetries,
	})
	result, err := client.Commit(ctx, payload)
	if err != nil {
		return err
	}
	if failed := result.Failed(payload); len(failed) > 0 {
		return apperrors.CommitRejected(failed)
	}
	fmt.Fprintf(w, "committed %d files to %s\n", len(payload.Files), payload.SandboxID)
	return nil
}
