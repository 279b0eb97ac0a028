package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ragview/internal/chat"
	"gorm.io/gorm"
)

func init() {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "Show queued URL ingestion jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			repo, err := a.repo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				j, err := repo.GetJobByID(ctx, args[0])
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("job %q not found", args[0])
				}
				if err != nil {
					return err
				}
				printJob(out, j)
				return nil
			}

			jobs, err := repo.ListJobs(ctx, limit)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs.")
			}
			for i := range jobs {
				printJob(out, &jobs[i])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "how many recent jobs to list")
	rootCmd.AddCommand(cmd)
}

func printJob(w io.Writer, j *chat.IngestJob) {
	fmt.Fprintf(w, "%s  %-9s  %s  %s\n", j.ID, j.Status, j.CreatedAt.Local().Format("15:04 2006-01-02"), j.URL)
	if j.Result != nil {
		fmt.Fprintf(w, "    %s\n", *j.Result)
	}
	if j.Error != nil {
		fmt.Fprintf(w, "    error: %s\n", *j.Error)
	}
}
