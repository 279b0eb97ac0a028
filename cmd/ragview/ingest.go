package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ragview/internal/controller"
)

func init() {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add documents to the RAG service",
	}

	var async bool
	urlCmd := &cobra.Command{
		Use:   "url <url>",
		Short: "Ingest a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			hist, err := a.manager(ctx, true)
			if err != nil {
				return err
			}
			ctl, _ := a.console(hist)

			if !async {
				return exitErr(ctl.IngestURL(ctx, args[0]))
			}
			jobs, err := a.jobs()
			if err != nil {
				return err
			}
			job, err := ctl.WithEnqueuer(jobs).IngestURLAsync(ctx, args[0])
			if err != nil {
				return exitErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s queued; check it with: ragview jobs %s\n", job.ID, job.ID)
			return nil
		},
	}
	urlCmd.Flags().BoolVar(&async, "async", false, "queue the URL for the ingestion worker")

	fileCmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Upload a file (.pdf, .docx, .json, .txt)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return err
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			hist, err := a.manager(ctx, true)
			if err != nil {
				return err
			}
			ctl, _ := a.console(hist)
			up := &controller.Upload{Name: filepath.Base(args[0]), Size: st.Size(), Body: f}
			return exitErr(ctl.IngestFile(ctx, up))
		},
	}

	ingestCmd.AddCommand(urlCmd, fileCmd)
	rootCmd.AddCommand(ingestCmd)
}
