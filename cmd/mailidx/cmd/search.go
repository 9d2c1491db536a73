package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/mime"
	"github.com/wesm/mailidx/internal/query"
	"github.com/wesm/mailidx/internal/search"
	"github.com/wesm/mailidx/internal/store"
	"github.com/wesm/mailidx/internal/textutil"
)

var (
	searchLimit  int
	searchOffset int
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index and print matching messages",
	Long: `Search the index and print one page of results, best match first.

The query syntax is the same as for 'mailidx query'. Without --limit the
page size comes from [browse].page_size.

Examples:
  mailidx search from:alice budget
  mailidx search '"quarterly report"' year:2024 --json
  mailidx search invoice --offset 20 --limit 20`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stem, err := stemmer("")
		if err != nil {
			return err
		}
		q := search.NewParser(stem).Parse(strings.Join(args, " "))
		logger.Debug("parsed query", "query", q.String())

		st, err := openIndex(store.ModeReadOnly)
		if err != nil {
			return err
		}
		defer st.Close()

		limit := searchLimit
		if limit <= 0 {
			limit = cfg.Browse.PageSize
		}
		engine := query.NewSQLiteEngine(st.DB())
		w, err := engine.Search(cmd.Context(), q, max(searchOffset, 0), limit)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if searchJSON {
			return outputSearchResultsJSON(cmd.OutOrStdout(), w)
		}
		if w.Len() == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
			return nil
		}
		return outputSearchResultsTable(cmd.OutOrStdout(), w)
	},
}

func outputSearchResultsTable(out io.Writer, w *query.Window) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tDATE\tFROM\tSUBJECT\tKEY")
	fmt.Fprintln(tw, "────\t────\t────\t───────\t───")

	for _, it := range w.Items {
		date := ""
		if t, err := mime.ParseDate(it.Payload.Date); err == nil {
			date = t.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			it.Rank+1,
			date,
			textutil.TruncateRunes(it.Payload.From, 30),
			textutil.TruncateRunes(it.Payload.Title, 50),
			it.KeyTerm,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nShowing %d-%d of about %d matching emails.\n",
		w.Offset+1, w.Offset+w.Len(), w.EstimatedTotal)
	return nil
}

type searchResultJSON struct {
	Rank  int     `json:"rank"`
	Key   string  `json:"key"`
	Score float64 `json:"score"`
	document.Payload
}

func outputSearchResultsJSON(out io.Writer, w *query.Window) error {
	results := make([]searchResultJSON, 0, w.Len())
	for _, it := range w.Items {
		results = append(results, searchResultJSON{
			Rank:    it.Rank + 1,
			Key:     it.KeyTerm,
			Score:   it.Score,
			Payload: it.Payload,
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"offset":          w.Offset,
		"estimated_total": w.EstimatedTotal,
		"results":         results,
	})
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default [browse].page_size)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "skip the first N results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}
