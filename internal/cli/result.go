package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"qjob/internal/qjob/storage"
)

type resultCmdParams struct {
	output  string
	payload bool
}

var resultParams = &resultCmdParams{}

func newResultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Download a completed job's result from object storage",
		Args:  cobra.ExactArgs(1),
		RunE:  runResult,
	}

	cmd.Flags().StringVarP(&resultParams.output, "output", "o", "",
		"Write the body to this file instead of stdout")
	cmd.Flags().BoolVar(&resultParams.payload, "payload", false,
		"Download the originally submitted payload instead of the result")

	return cmd
}

func runResult(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	apiClient, err := newAPIClient()
	if err != nil {
		return err
	}
	store := storage.NewTransfer(apiClient, &http.Client{Timeout: cfg.API.Timeout}, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	defer cancel()

	var body []byte
	if resultParams.payload {
		body, err = store.DownloadPayload(ctx, jobID)
	} else {
		body, err = store.DownloadResult(ctx, jobID)
	}
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	if resultParams.output != "" {
		if err := os.WriteFile(resultParams.output, body, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Written %d bytes to %s\n", len(body), resultParams.output)
		return nil
	}
	fmt.Printf("%s\n", body)
	return nil
}
