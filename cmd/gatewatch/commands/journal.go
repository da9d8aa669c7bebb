package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatewatch/gatewatch/internal/config"
	"github.com/gatewatch/gatewatch/internal/journal"
)

// NewJournalCommand creates the journal command
func NewJournalCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled session terminations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			j, err := journal.Open(cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to read journal: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No journaled sessions")
				return nil
			}

			fmt.Printf("Journaled sessions (%d):\n", len(entries))
			fmt.Println("========================")
			for i, e := range entries {
				fmt.Printf("%d. %s\n", i+1, e.Key)
				fmt.Printf("   Ended: %s\n", e.EndedAt.Local().Format("2006-01-02 15:04:05"))
				if e.ActivityState != "" {
					fmt.Printf("   Last State: %s\n", e.ActivityState)
				}
				fmt.Printf("   Tokens: %d\n", e.TotalTokens)
				if e.Summary != "" {
					fmt.Printf("   Summary: %s\n", e.Summary)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries to show")
	return cmd
}
