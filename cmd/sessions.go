package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/veroide/mergehost/internal/storage"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect sessions saved by the host",
		Long: `Inspect the open sessions and commit log in the host database. The host
need not be running; stop it before deleting sessions it has loaded.`,
	}
	cmd.PersistentFlags().String("db", "", "SQLite database (default: ~/.mergehost/mergehost.db)")

	cmd.AddCommand(
		newSessionsListCmd(),
		newSessionsShowCmd(),
		newSessionsDeleteCmd(),
		newSessionsCommitsCmd(),
	)
	return cmd
}

// withStore loads config and opens the database for one subcommand.
func withStore(cmd *cobra.Command, fn func(*storage.SQLiteStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newSessionsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *storage.SQLiteStore) error {
				records, err := store.ListSessions(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No open sessions.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSANDBOX\tSOURCE\tFILES\tUPDATED")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						r.ID, r.SandboxID, r.SourceBranch, r.Files, r.UpdatedAt.Local().Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum sessions to list")
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show per-file progress of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *storage.SQLiteStore) error {
				s, err := store.LoadDraft(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, titleStyle.Render("Session "+s.ID))
				fmt.Fprintf(out, "Sandbox:  %s\n", s.Meta.SandboxID)
				fmt.Fprintf(out, "Source:   %s\n", s.Meta.SourceBranch)
				fmt.Fprintf(out, "Updated:  %s\n", s.UpdatedAt.Local().Format(time.DateTime))
				fmt.Fprintf(out, "Commit:   %v\n\n", s.AllFilesResolved())
				fmt.Fprint(out, renderProgress(s.Progress()))
				return nil
			})
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved session and its decisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *storage.SQLiteStore) error {
				if err := store.DeleteSession(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
				return nil
			})
		},
	}
}

func newSessionsCommitsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "commits",
		Short: "List recent commits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *storage.SQLiteStore) error {
				records, err := store.ListCommits(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No commits recorded.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SESSION\tSANDBOX\tSOURCE\tFILES\tCOMMITTED")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						r.SessionID, r.SandboxID, r.SourceBranch, len(r.Files), r.CommittedAt.Local().Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum commits to list")
	return cmd
}
