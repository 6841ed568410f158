// Package main is the stratrunner server and CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tradekit/stratrunner/pkg/api"
	"github.com/tradekit/stratrunner/pkg/config"
	"github.com/tradekit/stratrunner/pkg/eventlog"
	"github.com/tradekit/stratrunner/pkg/feed"
	"github.com/tradekit/stratrunner/pkg/loader"
	"github.com/tradekit/stratrunner/pkg/models"
	"github.com/tradekit/stratrunner/pkg/runtime"
	"github.com/tradekit/stratrunner/pkg/storage"
	"github.com/tradekit/stratrunner/pkg/trigger"
)

var (
	configPath        string
	subscriptionsPath string
	watchServer       string
	watchToken        string
	watchIDs          string
)

func main() {
	// Load .env if present; missing files are fine
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "stratrunner",
		Short: "Strategy execution server",
		Long:  "Runs user-defined trading strategies and serves their live execution feed",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&subscriptionsPath, "subscriptions", "", "Path to a JSON file of scheduled subscriptions")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail the live execution feed of one or more executions",
		RunE:  runWatch,
	}
	watchCmd.Flags().StringVar(&watchServer, "server", "http://localhost:8080", "Server base URL")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "Bearer token for authenticated servers")
	watchCmd.Flags().StringVar(&watchIDs, "ids", "", "Comma-separated execution ids to track")

	runCmd := &cobra.Command{
		Use:   "run [strategy file]",
		Short: "Execute one strategy file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runOnce,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.SaveConfig(config.DefaultConfig(), args[0])
		},
	}
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(serveCmd, runCmd, watchCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the configured or default configuration
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	return config.DefaultConfig(), nil
}

// buildLogger wires the storage backends into an event logger
func buildLogger(cfg *config.Config, notifier eventlog.Notifier) (*eventlog.Logger, storage.EphemeralStore, storage.ActionStore, error) {
	ephemeral, err := storage.NewEphemeralStore(cfg.Ephemeral)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create ephemeral store: %w", err)
	}

	actions, err := storage.NewActionStore(cfg.Durable)
	if err != nil {
		ephemeral.Close()
		return nil, nil, nil, fmt.Errorf("failed to create action store: %w", err)
	}

	return eventlog.NewLogger(ephemeral, actions, notifier), ephemeral, actions, nil
}

// runServe starts the API server and blocks until interrupted
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ephemeral, err := storage.NewEphemeralStore(cfg.Ephemeral)
	if err != nil {
		return fmt.Errorf("failed to create ephemeral store: %w", err)
	}
	defer ephemeral.Close()

	actions, err := storage.NewActionStore(cfg.Durable)
	if err != nil {
		return fmt.Errorf("failed to create action store: %w", err)
	}
	defer actions.Close()

	logger := eventlog.NewLogger(ephemeral, actions, nil)
	controller := runtime.NewController(logger, ephemeral, runtime.NewScriptRunner(&runtime.StaticToolInvoker{}))

	server := api.NewServer(cfg, logger, controller, actions)
	logger.SetNotifier(server.WebSocketManagerRef())

	if subscriptionsPath != "" {
		scheduler := trigger.NewScheduler(controller, ephemeral)
		if err := loadSubscriptions(scheduler, subscriptionsPath); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
		log.Println("Shutting down")
		return server.Stop(context.Background())
	}
}

// loadSubscriptions registers the subscriptions from a JSON file with the
// scheduler
func loadSubscriptions(scheduler *trigger.Scheduler, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read subscriptions file: %w", err)
	}

	var subs []trigger.Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return fmt.Errorf("failed to parse subscriptions file: %w", err)
	}

	for _, sub := range subs {
		if err := scheduler.Add(sub); err != nil {
			return fmt.Errorf("failed to schedule subscription %s: %w", sub.ID, err)
		}
		log.Printf("Scheduled subscription %s (%s)", sub.ID, sub.Strategy.Schedule)
	}

	return nil
}

// runWatch polls the snapshot endpoint and prints the merged feed until
// interrupted
func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ids := make([]string, 0)
	for _, id := range strings.Split(watchIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("at least one execution id is required")
	}

	reconciler := feed.NewReconciler(feed.NewHTTPSnapshotClient(watchServer, watchToken), feed.Options{
		PollInterval: time.Duration(cfg.Feed.PollIntervalMS) * time.Millisecond,
		GraceDelay:   time.Duration(cfg.Feed.GraceDelayMS) * time.Millisecond,
		MaxEntries:   cfg.Feed.MaxEntries,
	})
	defer reconciler.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reconciler.SetTracked(ids)
	reconciler.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.Feed.PollIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			for _, entry := range reconciler.Entries() {
				marker := " "
				if entry.Exiting {
					marker = "~"
				}
				fmt.Printf("%s %s  %-8s  %-14s  %s\n",
					marker,
					entry.Event.Timestamp.Format(time.RFC3339),
					entry.ExecutionID,
					entry.Event.Type,
					describeEvent(entry.Event))
			}
			fmt.Println("----")
		}
	}
}

// describeEvent renders the payload field that matters for the event's type
func describeEvent(event models.Event) string {
	switch event.Type {
	case models.EventToolCall:
		return event.Payload.Tool
	case models.EventToolResult:
		return event.Payload.Result
	case models.EventToolsSelected:
		return strings.Join(event.Payload.Tools, ", ")
	case models.EventError:
		return event.Payload.Error
	default:
		return event.Payload.Note
	}
}

// runOnce executes a single strategy file with the static tool invoker
func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	def, err := loader.NewStrategyLoader().LoadFile(args[0])
	if err != nil {
		return err
	}

	logger, ephemeral, actions, err := buildLogger(cfg, nil)
	if err != nil {
		return err
	}
	defer ephemeral.Close()
	defer actions.Close()

	controller := runtime.NewController(logger, ephemeral, runtime.NewScriptRunner(&runtime.StaticToolInvoker{}))
	result := controller.Execute(context.Background(), runtime.ExecutionRequest{
		ExecutionID: uuid.New().String(),
		Strategy:    def,
	})

	fmt.Printf("success: %v\nmessage: %s\n", result.Success, result.Message)
	if !result.Success {
		os.Exit(1)
	}

	return nil
}
