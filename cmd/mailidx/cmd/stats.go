package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wesm/mailidx/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openIndex(store.ModeReadOnly)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Index: %s\n", st.Path())
		fmt.Fprintf(out, "  Messages:       %d\n", stats.Documents)
		fmt.Fprintf(out, "  Distinct terms: %d\n", stats.Terms)
		fmt.Fprintf(out, "  Postings:       %d\n", stats.Postings)
		fmt.Fprintf(out, "  Average length: %.1f terms\n", stats.AverageLength)
		fmt.Fprintf(out, "  Checkpoints:    %d\n", stats.Checkpoints)
		fmt.Fprintf(out, "  Size:           %.2f MB\n", float64(stats.DatabaseSize)/(1024*1024))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
