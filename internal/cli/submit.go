package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type submitCmdParams struct {
	backend string
	timeout time.Duration
	output  string
}

var submitParams = &submitCmdParams{}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <payload-file>",
		Short: "Submit a job and wait for its terminal status",
		Args:  cobra.ExactArgs(1),
		RunE:  runSubmit,
	}

	cmd.Flags().StringVarP(&submitParams.backend, "backend", "b", "", "Target backend name")
	cmd.Flags().DurationVarP(&submitParams.timeout, "timeout", "t", 0,
		"Overall wait budget (defaults to submit.waitTimeout from config)")
	cmd.Flags().StringVarP(&submitParams.output, "output", "o", "",
		"Write the result body to this file instead of stdout")
	_ = cmd.MarkFlagRequired("backend")

	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read payload file: %w", err)
	}

	timeout := submitParams.timeout
	if timeout <= 0 {
		timeout = cfg.Submit.WaitTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nReceived termination signal. Cancelling wait...")
		cancel()
	}()

	sub, err := newSubmitter()
	if err != nil {
		return err
	}

	result, err := sub.SubmitAndWait(ctx, payload, submitParams.backend, timeout)
	if err != nil {
		return fmt.Errorf("submission failed: %w", err)
	}

	fmt.Printf("Id: %s\n", result.JobID)
	fmt.Printf("Status: %s\n", result.Status)

	if result.Result == nil {
		return nil
	}
	if submitParams.output != "" {
		if err := os.WriteFile(submitParams.output, result.Result, 0644); err != nil {
			return fmt.Errorf("failed to write result file: %w", err)
		}
		fmt.Printf("Result written to %s\n", submitParams.output)
		return nil
	}
	fmt.Printf("Result: %s\n", result.Result)
	return nil
}
