package main

import (
	"github.com/spf13/cobra"
)

func init() {
	var resume bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
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
			ctl, repl := a.console(hist)
			return repl.Run(ctx, ctl)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "reopen the most recent conversation instead of starting a new one")
	rootCmd.AddCommand(cmd)
}
