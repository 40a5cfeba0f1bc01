package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/irdesk/ir-assist/internal/history"
)

var (
	historySession string
	historyOut     string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored chat sessions",
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a session transcript to xlsx",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := history.ExportSessionXLSX(ctx, st, historySession, historyOut)
		if err != nil {
			return eris.Wrapf(err, "export session %s", historySession)
		}
		fmt.Printf("exported %d messages to %s\n", n, historyOut)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a session transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		msgs, err := st.ListMessages(ctx, historySession)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Println("no messages for session", historySession)
			return nil
		}
		for _, m := range msgs {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Role, m.Content)
		}
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historySession, "session", "", "session id (required)")
	historyCmd.MarkPersistentFlagRequired("session")
	historyExportCmd.Flags().StringVarP(&historyOut, "out", "o", "transcript.xlsx", "output xlsx path")

	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
