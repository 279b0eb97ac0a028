package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	var (
		resume         bool
		conversationID string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and record it in the history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			hist, err := a.manager(ctx, resume)
			if err != nil {
				return err
			}
			if conversationID != "" && !hist.LoadConversation(conversationID) {
				return fmt.Errorf("conversation %q not found", conversationID)
			}

			ctl, _ := a.console(hist)
			return exitErr(ctl.Ask(ctx, strings.Join(args, " ")))
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "continue the most recent conversation")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue the conversation with this id")
	rootCmd.AddCommand(cmd)
}
