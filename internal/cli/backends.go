package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newBackendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Inspect available backends",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available backends",
		Args:  cobra.NoArgs,
		RunE:  runBackendsList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status <name>",
		Short: "Show the availability of a backend",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackendsStatus,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "properties <name>",
		Short: "Show the calibration properties of a backend",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackendsProperties,
	})

	return cmd
}

func runBackendsList(cmd *cobra.Command, args []string) error {
	apiClient, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	defer cancel()

	backends, err := apiClient.Backends(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backends: %w", err)
	}

	for _, backend := range backends {
		fmt.Println(backend.Name)
	}
	return nil
}

func runBackendsStatus(cmd *cobra.Command, args []string) error {
	apiClient, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	defer cancel()

	status, err := apiClient.BackendStatus(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get backend status: %w", err)
	}

	fmt.Printf("Operational: %v\n", status.Operational)
	fmt.Printf("Pending Jobs: %d\n", status.Pending)
	if status.Message != "" {
		fmt.Printf("Message: %s\n", status.Message)
	}
	return nil
}

func runBackendsProperties(cmd *cobra.Command, args []string) error {
	apiClient, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	defer cancel()

	props, err := apiClient.BackendProperties(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get backend properties: %w", err)
	}

	fmt.Printf("%s\n", props)
	return nil
}
