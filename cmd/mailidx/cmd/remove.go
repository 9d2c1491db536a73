package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/wesm/mailidx/internal/store"
)

var removeYes bool

var removeCmd = &cobra.Command{
	Use:   "remove <key-term|message-id>",
	Short: "Remove a message from the index",
	Long: `Remove one message from the index. The mbox file is not touched, so
indexing it again without a checkpoint brings the message back.

Examples:
  mailidx remove '<abc123@example.com>'
  mailidx remove 'Qabc123@example.com' --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openIndex(store.ModeReadWrite)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		doc, err := lookupDocument(ctx, st, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Key:     %s\n", doc.KeyTerm)
		fmt.Fprintf(out, "From:    %s\n", doc.Payload.From)
		fmt.Fprintf(out, "Subject: %s\n", doc.Payload.Title)
		fmt.Fprintf(out, "Mailbox: %s #%d\n", doc.Payload.Filename, doc.Payload.MessageNum)

		if !removeYes {
			if !isTerminal(os.Stdin) {
				return errors.New("refusing to remove without confirmation; use --yes")
			}
			confirmed := false
			err := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title("Remove this message from the index?").
						Affirmative("Yes, remove").
						Negative("Cancel").
						Value(&confirmed),
				),
			).RunWithContext(ctx)
			if errors.Is(err, huh.ErrUserAborted) {
				confirmed = false
			} else if err != nil {
				return fmt.Errorf("confirm: %w", err)
			}
			if !confirmed {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		if err := st.DeleteDocument(ctx, doc.KeyTerm); err != nil {
			return fmt.Errorf("remove message: %w", err)
		}
		if err := st.Flush(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nRemoved %s.\n", doc.KeyTerm)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "remove without asking")
}
