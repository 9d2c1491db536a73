package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/wesm/mailidx/internal/config"
	"github.com/wesm/mailidx/internal/store"
	"github.com/wesm/mailidx/internal/terms"
)

var (
	cfgFile string
	confDir string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mailidx",
	Short: "Index and search local mbox files",
	Long: `mailidx indexes mbox mail folders into a local full-text index and
lets you search them from the terminal.

Index a mailbox, then browse it:
  mailidx index ~/Mail/inbox.mbox
  mailidx query from:alice budget`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(confDir, cfgFile)
		if err != nil {
			return err
		}
		logger.Debug("config loaded", "home", cfg.HomeDir, "database", cfg.DatabasePath())
		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// printError reports a failed command. A configuration error prints its
// message, then its detail on a line of its own.
func printError(w io.Writer, err error) {
	var cerr *config.Error
	if errors.As(err, &cerr) {
		fmt.Fprintln(w, "Error:", cerr.Msg)
		if cerr.Aux != "" {
			fmt.Fprintln(w, cerr.Aux)
		}
		return
	}
	fmt.Fprintln(w, "Error:", err)
}

// openIndex opens the index database in the configured home directory.
func openIndex(mode store.Mode) (*store.Store, error) {
	st, err := store.Open(cfg.DatabasePath(), mode)
	if err != nil {
		if mode == store.ModeReadOnly {
			return nil, fmt.Errorf("open index (run 'mailidx index' first?): %w", err)
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	return st, nil
}

// stemmer returns the stemmer for the configured language, or the override
// when one is given.
func stemmer(override string) (terms.Stemmer, error) {
	lang := cfg.Index.Language
	if override != "" {
		lang = override
	}
	return terms.NewStemmer(lang)
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&confDir, "confdir", "c", "", "configuration directory (overrides MAILIDX_HOME, default ~/.mailidx)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: <confdir>/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
