package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/wesm/mailidx/internal/query"
	"github.com/wesm/mailidx/internal/search"
	"github.com/wesm/mailidx/internal/store"
	"github.com/wesm/mailidx/internal/tui"
)

var queryCmd = &cobra.Command{
	Use:     "query [query...]",
	Aliases: []string{"browse"},
	Short:   "Browse search results interactively",
	Long: `Open the terminal search browser. Words given on the command line form
the initial query; with none, the newest messages are listed.

Query syntax:
  word            messages containing word
  "a phrase"      words in this order
  +word  -word    word required / excluded
  AND OR NOT      boolean operators (OR is the default)
  from:  to:  cc:  subject:  file:
  year:2024  month:202403  day:20240315  fortnight:
  before:2024-01-01  after:  older_than:30d  newer_than:2w

Keys:
  ↑/k, ↓/j    Move up/down
  PgUp/PgDn   Page up/down
  Enter       Show message details
  /           Edit the query
  i, Esc      Back to the list
  q           Quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal(os.Stdout) {
			return errors.New("query needs a terminal; use 'mailidx search' for scripted output")
		}

		stem, err := stemmer("")
		if err != nil {
			return err
		}

		st, err := openIndex(store.ModeReadOnly)
		if err != nil {
			return err
		}
		defer st.Close()

		// Log output would corrupt the alternate screen.
		quiet := slog.New(slog.DiscardHandler)

		engine := query.NewSQLiteEngine(st.DB())
		session := query.NewSession(engine, search.NewParser(stem), strings.Join(args, " "),
			query.WithStrictClamp(cfg.Browse.StrictClamp),
			query.WithSessionLogger(quiet),
		)

		ctx := cmd.Context()
		model := tui.New(ctx, session, tui.Options{
			Version:     Version,
			MyAddresses: cfg.Browse.MyAddresses,
		})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("run browser: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
