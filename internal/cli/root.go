// Package cli wires the devguru client packages into a cobra command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"devguru-client/internal/config"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

type app struct {
	loadConfig func() (*config.Config, error)

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd returns the devguru command reading configuration from the
// environment.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{loadConfig: config.LoadConfig})
}

// Execute runs the command tree.
func Execute() error {
	return NewRootCmd().Execute()
}

func newRootCmd(a *app) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "devguru",
		Short:        "Command line client for the DevGuru Q&A site",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			level := cfg.LogLevel
			if verbose {
				level = slog.LevelDebug
			}
			a.logger = newLogger(cmd.ErrOrStderr(), level)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newListenCmd(a),
		newLikeCmd(a),
		newMarkCorrectCmd(a),
		newSearchCmd(a),
		newTagsCmd(a),
		newThemeCmd(a),
		newTokenCmd(a),
		newVersionCmd(),
	)
	return root
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of devguru",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devguru %s\n", Version)
		},
	}
}
