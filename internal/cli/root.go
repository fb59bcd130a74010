package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"qjob/internal/qjob/api"
	"qjob/internal/qjob/storage"
	"qjob/internal/qjob/submitter"
	"qjob/internal/qjob/websocket"
	"qjob/pkg/config"
	"qjob/pkg/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "qjob",
	Short: "qjob CLI client",
	Long:  "Command Line Interface for submitting compute jobs and observing their completion",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	loaded, path, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		defaults := config.DefaultConfig
		loaded = &defaults
		path = "built-in defaults"
	}
	cfg = loaded

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logger.INFO
	}
	log = logger.NewWithConfig(logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
	})
	log.Debug("configuration loaded", "path", path)

	rootCmd.PersistentFlags().StringVarP(&cfg.API.URL, "url", "u", cfg.API.URL,
		"Control API base URL")
	rootCmd.PersistentFlags().StringVar(&cfg.API.Token, "token", cfg.API.Token,
		"Bearer token for the control API")
	rootCmd.PersistentFlags().StringVar(&cfg.API.WebsocketURL, "ws-url", cfg.API.WebsocketURL,
		"Streaming status endpoint (derived from --url when empty)")

	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newResultCmd())
	rootCmd.AddCommand(newJobsCmd())
	rootCmd.AddCommand(newBackendsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Convenience constructors for CLI commands

func newAPIClient() (*api.Client, error) {
	return api.New(api.Config{
		BaseURL:           cfg.API.URL,
		Token:             cfg.API.Token,
		ClientApplication: cfg.API.ClientApplication,
		Timeout:           cfg.API.Timeout,
	}, log)
}

func newSubmitter() (*submitter.Submitter, error) {
	apiClient, err := newAPIClient()
	if err != nil {
		return nil, err
	}

	stream := websocket.NewClient(cfg.GetWebsocketURL(), cfg.API.Token, log)
	store := storage.NewTransfer(apiClient, &http.Client{Timeout: cfg.API.Timeout}, log)

	return submitter.New(apiClient, stream, store, submitter.Options{
		UseObjectStorage: cfg.Submit.UseObjectStorage,
		InlineLimit:      cfg.Submit.InlineLimit,
		PollInterval:     cfg.Submit.PollInterval,
	}, log), nil
}
