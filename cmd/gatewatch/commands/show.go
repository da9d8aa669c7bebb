package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatewatch/gatewatch/internal/config"
	"github.com/gatewatch/gatewatch/internal/gateway"
	"github.com/gatewatch/gatewatch/pkg/models"
)

// NewShowCommand creates the show command
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [key]",
		Short: "Show gateway sessions without the TUI",
		Long: `Show the gateway's current sessions in a non-interactive format.
Without arguments: lists all sessions
With a session key: shows full details for that session`,
		RunE: runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := gateway.NewClient(cfg.GatewayURL, cfg.RequestTimeout)
	snap, err := client.FetchSnapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch sessions: %w", err)
	}

	switch len(args) {
	case 0:
		return showSessions(snap)
	case 1:
		return showSession(snap, args[0])
	default:
		return fmt.Errorf("too many arguments. Usage: gatewatch show [key]")
	}
}

func showSessions(snap *models.Snapshot) error {
	if len(snap.Sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	records := make([]*models.SessionRecord, 0, len(snap.Sessions))
	for _, rec := range snap.Sessions {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].LastActivityTime != records[j].LastActivityTime {
			return records[i].LastActivityTime > records[j].LastActivityTime
		}
		return records[i].Key < records[j].Key
	})

	fmt.Printf("Sessions (%d active / %d total):\n", snap.ActiveSessions, snap.TotalSessions)
	fmt.Println("==============================")
	for i, rec := range records {
		fmt.Printf("%d. %s\n", i+1, rec.Key)
		fmt.Printf("   State: %s\n", rec.ActivityState)
		fmt.Printf("   Last Activity: %s\n", rec.LastActivity().Local().Format("2006-01-02 15:04"))
		fmt.Printf("   Tokens: %d (%.1f%% used)\n", rec.TokenUsage.Total, rec.TokenUsage.PercentUsed)
		fmt.Println()
	}

	if len(snap.HistoricalSessions) > 0 {
		fmt.Printf("Recently ended: %d session(s)\n", len(snap.HistoricalSessions))
	}
	return nil
}

func showSession(snap *models.Snapshot, key string) error {
	rec, ok := snap.Sessions[key]
	if !ok {
		fmt.Printf("Session '%s' not found\n", key)
		if len(snap.Sessions) > 0 {
			fmt.Println("\nAvailable sessions:")
			keys := make([]string, 0, len(snap.Sessions))
			for k := range snap.Sessions {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  - %s\n", k)
			}
		}
		return nil
	}

	fmt.Printf("Session '%s':\n", rec.Key)
	fmt.Println("=============")
	fmt.Printf("State: %s\n", rec.ActivityState)
	fmt.Printf("Last Activity: %s\n", rec.LastActivity().Local().Format("2006-01-02 15:04:05"))
	if rec.RunID != "" {
		fmt.Printf("Run: %s\n", rec.RunID)
	}
	fmt.Printf("Tokens: %d total, %d context, %.1f%% used\n",
		rec.TokenUsage.Total, rec.TokenUsage.Context, rec.TokenUsage.PercentUsed)
	if rec.LastMessagePreview != nil {
		fmt.Printf("\nLast message (%s):\n%s\n",
			time.UnixMilli(rec.LastMessagePreview.Timestamp).Local().Format("15:04:05"),
			rec.LastMessagePreview.Text)
	}
	return nil
}
