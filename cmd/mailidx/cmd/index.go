package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/indexer"
	"github.com/wesm/mailidx/internal/mime"
	"github.com/wesm/mailidx/internal/store"
)

var (
	indexIncremental bool
	indexFull        bool
	indexLanguage    string
)

var indexCmd = &cobra.Command{
	Use:   "index <mbox>...",
	Short: "Add mbox files to the index",
	Long: `Index every message in the given mbox files.

Messages are keyed by Message-ID, so indexing a file again replaces the
documents it produced earlier instead of duplicating them. A message that
cannot be parsed is logged and skipped.

With incremental indexing (the --incremental flag or [index].incremental in
the config file) a file that has only grown since the last run is resumed
after the last indexed message.

Examples:
  mailidx index ~/Mail/inbox.mbox
  mailidx index --incremental ~/Mail/*.mbox`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stem, err := stemmer(indexLanguage)
		if err != nil {
			return err
		}

		st, err := openIndex(store.ModeReadWrite)
		if err != nil {
			return err
		}
		defer st.Close()

		html := mime.NewHTMLConverter(cfg.Index.HTMLCommand, logger)
		builder := document.NewBuilder(document.NewEnv(), stem, html, document.WithLogger(logger))

		opts := []indexer.Option{
			indexer.WithLogger(logger),
			indexer.WithMaxMessageBytes(cfg.Index.MaxMessageBytes),
		}
		incremental := cfg.Index.Incremental
		if cmd.Flags().Changed("incremental") {
			incremental = indexIncremental
		}
		if incremental && !indexFull {
			opts = append(opts, indexer.WithFreshness(indexer.SizeFreshness{}))
		}
		ix := indexer.New(st, builder, opts...)

		summaries, total, err := ix.IndexMailboxes(cmd.Context(), args)
		out := cmd.OutOrStdout()
		for _, s := range summaries {
			fmt.Fprintf(out, "%s: %d messages", s.Path, s.Messages)
			if s.Errors > 0 {
				fmt.Fprintf(out, ", %d errors", s.Errors)
			}
			if s.Resumed {
				fmt.Fprintf(out, " (resumed at byte %d)", s.StartOffset)
			}
			fmt.Fprintf(out, " in %s\n", s.Duration.Round(time.Millisecond))
		}
		if len(summaries) > 1 {
			fmt.Fprintf(out, "Total: %d messages, %d errors in %s\n",
				total.Messages, total.Errors, total.Duration.Round(time.Millisecond))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexIncremental, "incremental", false, "resume files that only grew since the last run")
	indexCmd.Flags().BoolVar(&indexFull, "full", false, "ignore checkpoints and index every file from the start")
	indexCmd.Flags().StringVar(&indexLanguage, "language", "", "stemming language (overrides [index].language)")
}
