package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"qjob/internal/qjob/api"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and service API versions",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("Client: %s\n", api.Version)

	apiClient, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	defer cancel()

	version, err := apiClient.APIVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get API version: %w", err)
	}
	fmt.Printf("Service: %s\n", version)
	return nil
}
