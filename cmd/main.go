// Command mergehost resolves branch-merge conflicts hunk by hunk. It runs
// the resolution engine as a WebSocket host for IDE front ends, and offers
// an offline resolve command for scripted or terminal use.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/veroide/mergehost/internal/config"
	apperrors "github.com/veroide/mergehost/internal/errors"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.3.0" ./cmd
var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// run executes the CLI with args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}

	code := 1
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	if c := apperrors.GetCode(err); c != apperrors.CodeUnknown {
		fmt.Fprintf(stderr, "Error [%s]: %s\n", c, apperrors.GetMessage(err))
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "mergehost",
		Short: "Hunk-based merge conflict resolution",
		Long: `mergehost resolves the conflicts between a sandbox branch and its source
branch one hunk at a time, then hands the merged files to the sync service.

Run 'mergehost serve' to host sessions for IDE clients over WebSocket, or
'mergehost resolve' to resolve a conflict payload from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().String("config", "", "Path to config file (default: ~/.mergehost/config.toml)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newResolveCmd(),
		newSessionsCmd(),
		newWatchCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mergehost %s\n", Version)
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\n", path)
			return nil
		},
	}
}

// setupLogging points the default logger at w and applies level.
func setupLogging(w io.Writer, level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetReportTimestamp(true)
	return nil
}
