package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ragview/internal/controller"
	"github.com/suPer8Hu/ragview/internal/terminal"
	"github.com/suPer8Hu/ragview/internal/transcript"
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear past conversations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.manager(ctx, false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			entries := m.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No past chats.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %s  %s\n", e.ID, e.When(), e.Title)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.history.Load(ctx)
			if err != nil {
				return err
			}
			for _, c := range h {
				if c.ID == args[0] {
					transcript.Replay(transcript.NewTerminal(cmd.OutOrStdout()), c.Messages)
					return nil
				}
			}
			return fmt.Errorf("conversation %q not found", args[0])
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			hist, err := a.manager(ctx, false)
			if err != nil {
				return err
			}
			repl := terminal.NewREPL(os.Stdin, cmd.OutOrStdout())
			confirm := repl.Confirm
			if yes {
				confirm = func(string) bool { return true }
			}
			// the fresh chat after clearing is not worth printing
			ctl := controller.New(a.gw, hist, transcript.NewTerminal(io.Discard), repl.Console, confirm, a.settings())
			err = ctl.ClearHistory(ctx)
			if errors.Is(err, controller.ErrNotConfirmed) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			return err
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	historyCmd.AddCommand(listCmd, showCmd, clearCmd)
	rootCmd.AddCommand(historyCmd)
}
