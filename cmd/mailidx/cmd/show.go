package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/store"
)

var (
	showJSON  bool
	showTerms bool
)

var showCmd = &cobra.Command{
	Use:   "show <key-term|message-id>",
	Short: "Show a stored message",
	Long: `Show the stored fields of one indexed message.

The argument is either a key term as printed by 'mailidx search' or a
Message-ID header value, with or without angle brackets.

Examples:
  mailidx show 'Qabc123@example.com'
  mailidx show '<abc123@example.com>' --terms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openIndex(store.ModeReadOnly)
		if err != nil {
			return err
		}
		defer st.Close()

		doc, err := lookupDocument(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}

		var termFreqs map[string]int
		if showTerms {
			if termFreqs, err = st.Terms(cmd.Context(), doc.KeyTerm); err != nil {
				return err
			}
		}

		if showJSON {
			return outputDocumentJSON(cmd.OutOrStdout(), doc, termFreqs)
		}
		outputDocument(cmd.OutOrStdout(), doc, termFreqs)
		return nil
	},
}

// lookupDocument finds a document by key term, falling back to treating
// arg as a Message-ID.
func lookupDocument(ctx context.Context, st *store.Store, arg string) (*store.StoredDocument, error) {
	doc, err := st.Document(ctx, arg)
	if errors.Is(err, store.ErrNotFound) {
		doc, err = st.Document(ctx, document.KeyTerm(arg))
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no message %q in the index", arg)
	}
	return doc, err
}

func outputDocument(out io.Writer, doc *store.StoredDocument, termFreqs map[string]int) {
	p := doc.Payload
	fmt.Fprintf(out, "Key:     %s\n", doc.KeyTerm)
	fmt.Fprintf(out, "From:    %s\n", p.From)
	fmt.Fprintf(out, "To:      %s\n", p.To)
	if p.Cc != "" {
		fmt.Fprintf(out, "Cc:      %s\n", p.Cc)
	}
	fmt.Fprintf(out, "Subject: %s\n", p.Title)
	fmt.Fprintf(out, "Date:    %s\n", p.Date)
	fmt.Fprintf(out, "Mailbox: %s #%d\n", p.Filename, p.MessageNum)
	fmt.Fprintf(out, "Length:  %d terms\n", doc.Length)
	fmt.Fprintf(out, "\n%s\n", p.Sample)

	if termFreqs != nil {
		fmt.Fprintln(out, "\nTerms:")
		for _, t := range sortedTerms(termFreqs) {
			fmt.Fprintf(out, "  %-40s %d\n", t, termFreqs[t])
		}
	}
}

func outputDocumentJSON(out io.Writer, doc *store.StoredDocument, termFreqs map[string]int) error {
	v := map[string]any{
		"key":     doc.KeyTerm,
		"length":  doc.Length,
		"payload": doc.Payload,
	}
	if termFreqs != nil {
		v["terms"] = termFreqs
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedTerms(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
	showCmd.Flags().BoolVar(&showTerms, "terms", false, "list the indexed terms with their frequencies")
}
