package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type jobsCmdParams struct {
	limit int
}

var jobsParams = &jobsCmdParams{}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent jobs",
		Args:  cobra.NoArgs,
		RunE:  runJobs,
	}

	cmd.Flags().IntVarP(&jobsParams.limit, "limit", "n", 10, "Maximum number of jobs to list")

	return cmd
}

func runJobs(cmd *cobra.Command, args []string) error {
	apiClient, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	defer cancel()

	jobs, err := apiClient.Jobs(ctx, jobsParams.limit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	for _, job := range jobs {
		fmt.Printf("%-36s %-12s %s\n", job.ID, job.Status, job.Backend)
	}
	return nil
}
