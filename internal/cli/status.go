package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type statusCmdParams struct {
	include []string
	exclude []string
}

var statusParams = &statusCmdParams{}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Get the status of a job by ID",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	cmd.Flags().StringSliceVar(&statusParams.include, "include", nil,
		"Return only the named job fields")
	cmd.Flags().StringSliceVar(&statusParams.exclude, "exclude", nil,
		"Remove the named job fields from the response")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	apiClient, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	defer cancel()

	if len(statusParams.include) > 0 || len(statusParams.exclude) > 0 {
		doc, err := apiClient.GetJob(ctx, jobID, statusParams.include, statusParams.exclude)
		if err != nil {
			return fmt.Errorf("failed to get job: %w", err)
		}
		for field, value := range doc {
			fmt.Printf("%s: %s\n", field, value)
		}
		return nil
	}

	status, err := apiClient.JobStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job status: %w", err)
	}

	fmt.Printf("Id: %s\n", jobID)
	fmt.Printf("Status: %s\n", status)
	return nil
}
