package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gatewatch/gatewatch/internal/config"
	"github.com/gatewatch/gatewatch/internal/gateway"
	"github.com/gatewatch/gatewatch/internal/journal"
	"github.com/gatewatch/gatewatch/internal/logging"
	"github.com/gatewatch/gatewatch/internal/monitor"
	"github.com/gatewatch/gatewatch/internal/tui"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gatewatch",
		Short: "Live dashboard for agent gateway sessions",
		Long: `gatewatch is a TUI dashboard that watches the sessions of an agent
gateway over its REST and WebSocket APIs, reconciling both feeds into a
single stable view.`,
		RunE: runDashboard,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("gateway-url", "", "Gateway base URL (default http://localhost:8420)")
	flags.Duration("poll-interval", 0, "Fallback poll interval")
	flags.Duration("visibility-window", 0, "How long idle sessions stay listed")
	flags.Duration("flash-duration", 0, "Just-activated highlight duration")
	flags.Duration("request-timeout", 0, "Timeout for a single poll request")
	flags.String("journal", "", "Path of the termination journal database")
	flags.String("log-file", "", "Write logs to this file instead of discarding them")

	rootCmd.AddCommand(NewShowCommand())
	rootCmd.AddCommand(NewJournalCommand())
	rootCmd.AddCommand(NewMockGatewayCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog, err := logging.NewFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	// The journal is a convenience log; a broken database must not keep
	// the dashboard from starting.
	var j *journal.Journal
	if cfg.JournalPath != "" {
		j, err = journal.Open(cfg.JournalPath)
		if err != nil {
			logger.Warn("journal unavailable", "path", cfg.JournalPath, "err", err)
			j = nil
		} else {
			defer j.Close()
		}
	}

	client := gateway.NewClient(cfg.GatewayURL, cfg.RequestTimeout)
	sub, err := gateway.NewSubscriber(cfg.GatewayURL, logger)
	if err != nil {
		return err
	}

	var coordJournal monitor.Journal
	if j != nil {
		coordJournal = j
	}
	coord := monitor.NewCoordinator(client, sub, monitor.Options{
		PollInterval:     cfg.PollInterval,
		VisibilityWindow: cfg.VisibilityWindow,
		FlashDuration:    cfg.FlashDuration,
		Journal:          coordJournal,
		Logger:           logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go coord.Run(ctx)

	logger.Info("dashboard starting", "gateway", cfg.GatewayURL)
	if err := tui.Run(ctx, coord.Updates(), j); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Let the coordinator finish before the deferred journal close.
	stop()
	for range coord.Updates() {
	}
	return nil
}
